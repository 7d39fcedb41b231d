package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/domain"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/metrics"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/secure"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/service"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/token"
)

// CertificateHandler serves certificate files through the two access
// schemes and refreshes bearer tokens.
type CertificateHandler struct {
	access  *service.AccessService
	tokens  *token.Service
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// CertificateHandlerConfig contains configuration for the handler.
type CertificateHandlerConfig struct {
	AccessService *service.AccessService
	TokenService  *token.Service
	Metrics       *metrics.Metrics
	Logger        zerolog.Logger
}

// NewCertificateHandler creates a new certificate handler.
func NewCertificateHandler(cfg CertificateHandlerConfig) *CertificateHandler {
	return &CertificateHandler{
		access:  cfg.AccessService,
		tokens:  cfg.TokenService,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With().Str("handler", "certificate").Logger(),
	}
}

// RegisterRoutes registers the public certificate routes.
func (h *CertificateHandler) RegisterRoutes(r chi.Router) {
	// Path-embedded-token scheme. The trailing segment carries the
	// secure token and the file extension.
	r.Get(secure.AccessURLPrefix+"/{orgID}/{certID}/{file}", h.handlePathAccess)

	// Bearer-token scheme.
	r.Get(secure.AccessURLPrefix+"/{certID}/{fileType}", h.handleDownload)
	r.Get("/certificates/secure/{certID}/{recipID}", h.handleViewer)

	r.Post(secure.AccessURLPrefix+"/refresh", h.handleRefresh)
}

// handlePathAccess serves a file addressed by a full access URL. The
// whole request URI is validated as one unit so the expiry parameter
// cannot be detached from the path it was issued with.
func (h *CertificateHandler) handlePathAccess(w http.ResponseWriter, r *http.Request) {
	info, err := secure.ValidateAccessURL(r.URL.RequestURI())
	if err != nil {
		h.deny(w, r, "path", err)
		return
	}

	file, err := h.access.ServeByPath(r.Context(), service.PathAccessInput{
		OrganizationID: info.OrganizationID,
		CertificateID:  info.CertificateID,
		SecureToken:    info.SecureToken,
		FileExtension:  info.FileExtension,
		ClientIP:       r.RemoteAddr,
	})
	if err != nil {
		h.deny(w, r, "path", err)
		return
	}

	h.serveFile(w, file, "")
}

// handleDownload serves a file for a download-scoped bearer token.
func (h *CertificateHandler) handleDownload(w http.ResponseWriter, r *http.Request) {
	certID, err := strconv.ParseInt(chi.URLParam(r, "certID"), 10, 64)
	if err != nil {
		h.deny(w, r, "bearer", secure.ErrInvalidParams)
		return
	}
	fileType := chi.URLParam(r, "fileType")
	if !secure.IsAllowedExtension(fileType) {
		h.deny(w, r, "bearer", secure.ErrInvalidParams)
		return
	}

	claims, err := h.tokens.Verify(r.Context(), r.URL.Query().Get("token"), token.PurposeDownloadAccess)
	if err != nil {
		h.deny(w, r, "bearer", err)
		return
	}

	file, err := h.access.ServeByToken(r.Context(), service.BearerAccessInput{
		CertificateID: certID,
		FileExtension: fileType,
		Claims:        claims,
		ClientIP:      r.RemoteAddr,
	})
	if err != nil {
		h.deny(w, r, "bearer", err)
		return
	}

	h.serveFile(w, file, "certificate."+fileType)
}

// handleViewer serves the HTML view for a certificate- or share-scoped
// bearer token.
func (h *CertificateHandler) handleViewer(w http.ResponseWriter, r *http.Request) {
	certID, err := strconv.ParseInt(chi.URLParam(r, "certID"), 10, 64)
	if err != nil {
		h.deny(w, r, "bearer", secure.ErrInvalidParams)
		return
	}
	recipID, err := strconv.ParseInt(chi.URLParam(r, "recipID"), 10, 64)
	if err != nil {
		h.deny(w, r, "bearer", secure.ErrInvalidParams)
		return
	}

	claims, err := h.verifyAny(r, token.PurposeCertificateAccess, token.PurposeShareAccess)
	if err != nil {
		h.deny(w, r, "bearer", err)
		return
	}

	file, err := h.access.ServeByToken(r.Context(), service.BearerAccessInput{
		CertificateID: certID,
		RecipientID:   recipID,
		FileExtension: secure.ExtHTML,
		Claims:        claims,
		ClientIP:      r.RemoteAddr,
	})
	if err != nil {
		h.deny(w, r, "bearer", err)
		return
	}

	h.serveFile(w, file, "")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// handleRefresh exchanges a refresh token for a fresh access token.
func (h *CertificateHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, msgInvalidParams)
		return
	}

	result, err := h.tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.deny(w, r, "refresh", err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    int64(result.ExpiresIn.Seconds()),
	})
}

// verifyAny accepts the first purpose the token verifies under. Only a
// pure purpose mismatch moves on to the next candidate.
func (h *CertificateHandler) verifyAny(r *http.Request, purposes ...token.Purpose) (*token.Claims, error) {
	raw := r.URL.Query().Get("token")

	var err error
	for _, purpose := range purposes {
		var claims *token.Claims
		claims, err = h.tokens.Verify(r.Context(), raw, purpose)
		if err == nil {
			return claims, nil
		}
		if !errors.Is(err, domain.ErrPurposeMismatch) {
			return nil, err
		}
	}
	return nil, err
}

// serveFile writes the file with its content type. A non-empty
// attachment name forces a download in the browser.
func (h *CertificateHandler) serveFile(w http.ResponseWriter, file *service.File, attachment string) {
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Content)))
	w.Header().Set("Cache-Control", "private, no-store")
	if attachment != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment))
	}
	_, _ = w.Write(file.Content)
}

// deny rejects a request with a generic body while recording the
// precise cause in the audit log and metrics.
func (h *CertificateHandler) deny(w http.ResponseWriter, r *http.Request, scheme string, err error) {
	d := classifyDenial(err)

	h.metrics.AccessDenied.WithLabelValues(scheme, d.category).Inc()
	h.logger.Warn().
		Err(err).
		Str("event", "access_denied").
		Str("scheme", scheme).
		Str("category", d.category).
		Str("path", r.URL.Path).
		Str("client_ip", r.RemoteAddr).
		Msg("certificate access denied")

	if d.status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg(fmt.Sprintf("%s access failed", scheme))
	}

	writeError(w, d.status, d.message)
}
