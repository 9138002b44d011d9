package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the TherapyFlow router.
type Metrics struct {
	DispatchTotal      *prometheus.CounterVec
	DispatchDurationMs *prometheus.HistogramVec
	AttemptTotal       *prometheus.CounterVec
	GuardActionTotal   *prometheus.CounterVec
	RateLimitHitTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		DispatchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "therapyflow_dispatch_total",
			Help: "Total number of dispatches processed by the router.",
		}, []string{"operation", "provider", "status"}),

		DispatchDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "therapyflow_dispatch_duration_ms",
			Help:    "End-to-end dispatch duration in milliseconds (including retries and failover).",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"operation", "provider"}),

		AttemptTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "therapyflow_provider_attempt_total",
			Help: "Total provider attempts by outcome.",
		}, []string{"provider", "outcome"}),

		GuardActionTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "therapyflow_guard_action_total",
			Help: "Total content guard actions taken.",
		}, []string{"scanner", "action"}),

		RateLimitHitTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "therapyflow_ratelimit_hit_total",
			Help: "Total requests rejected by a rate limit dimension.",
		}, []string{"dimension"}),
	}
}

// DispatchLabels holds the label values for recording a dispatch.
type DispatchLabels struct {
	Operation  string
	Provider   string
	Status     string
	DurationMs float64
}

// RecordDispatch records metrics for a completed dispatch.
func (m *Metrics) RecordDispatch(labels DispatchLabels) {
	m.DispatchTotal.WithLabelValues(labels.Operation, labels.Provider, labels.Status).Inc()
	m.DispatchDurationMs.WithLabelValues(labels.Operation, labels.Provider).Observe(labels.DurationMs)
}

// RecordAttempt records a single provider attempt outcome ("success" or an
// error kind).
func (m *Metrics) RecordAttempt(provider, outcome string) {
	m.AttemptTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordGuardAction records a content guard verdict.
func (m *Metrics) RecordGuardAction(scanner, action string) {
	m.GuardActionTotal.WithLabelValues(scanner, action).Inc()
}

// RecordRateLimitHit records a rejected request for a limit dimension.
func (m *Metrics) RecordRateLimitHit(dimension string) {
	m.RateLimitHitTotal.WithLabelValues(dimension).Inc()
}
