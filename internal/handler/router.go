package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Router assembles the HTTP surface: public certificate routes, the
// admin issuing API, health, and metrics.
type Router struct {
	certificateHandler *CertificateHandler
	adminHandler       *AdminHandler
	metricsEnabled     bool
	metricsPath        string
	registry           *prometheus.Registry
	logger             zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	CertificateHandler *CertificateHandler
	AdminHandler       *AdminHandler
	MetricsEnabled     bool
	MetricsPath        string
	Registry           *prometheus.Registry
	Logger             zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		certificateHandler: cfg.CertificateHandler,
		adminHandler:       cfg.AdminHandler,
		metricsEnabled:     cfg.MetricsEnabled,
		metricsPath:        cfg.MetricsPath,
		registry:           cfg.Registry,
		logger:             cfg.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", rt.handleHealth)

	if rt.metricsEnabled {
		path := rt.metricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
	}

	rt.certificateHandler.RegisterRoutes(r)
	rt.adminHandler.RegisterRoutes(r)

	return r
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// requestLogger emits one structured line per request.
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		rt.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("request")
	})
}
