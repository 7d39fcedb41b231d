// Package metrics exposes Prometheus instrumentation for the secure
// access layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors the service updates.
type Metrics struct {
	// AccessGranted counts successful secure-access requests by scheme
	// ("path" or "bearer").
	AccessGranted *prometheus.CounterVec

	// AccessDenied counts rejected requests by scheme and failure
	// category ("format", "expiry", "ownership").
	AccessDenied *prometheus.CounterVec

	// Renders counts on-demand regenerations by format.
	Renders *prometheus.CounterVec

	// TokensIssued counts signed tokens minted by purpose.
	TokensIssued *prometheus.CounterVec
}

// New registers and returns the service metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AccessGranted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certificate_access_granted_total",
			Help: "Successful secure-access requests.",
		}, []string{"scheme"}),
		AccessDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certificate_access_denied_total",
			Help: "Rejected secure-access requests by failure category.",
		}, []string{"scheme", "category"}),
		Renders: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certificate_renders_total",
			Help: "On-demand certificate regenerations by format.",
		}, []string{"format"}),
		TokensIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certificate_tokens_issued_total",
			Help: "Signed access tokens minted by purpose.",
		}, []string{"purpose"}),
	}
}
