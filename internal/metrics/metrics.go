// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the verification service collectors. A nil *Metrics is
// valid and records nothing, so library use stays observability-free.
type Metrics struct {
	// Verifications counts finished verifications by path and status.
	Verifications *prometheus.CounterVec

	// Duration observes end-to-end verification latency by path.
	Duration *prometheus.HistogramVec

	// AttestationFailures counts attestation pipeline failures by stage.
	AttestationFailures *prometheus.CounterVec
}

// New creates the collectors and registers them on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the collectors on reg. Tests pass a private registry
// so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "twinlink_verifications_total",
			Help: "Finished verifications by path and status",
		}, []string{"path", "status"}),

		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "twinlink_verification_seconds",
			Help:    "End-to-end verification latency by path",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"path"}),

		AttestationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "twinlink_attestation_failures_total",
			Help: "Attestation pipeline failures by stage",
		}, []string{"stage"}),
	}
}

// ObserveVerification records one finished verification.
func (m *Metrics) ObserveVerification(path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(path, status).Inc()
	m.Duration.WithLabelValues(path).Observe(d.Seconds())
}

// AttestationFailure records a failed attestation stage. The method
// satisfies the minter's failure hook.
func (m *Metrics) AttestationFailure(stage string) {
	if m == nil {
		return
	}
	m.AttestationFailures.WithLabelValues(stage).Inc()
}
