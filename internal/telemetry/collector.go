package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonathanprocter/therapyflow-router/internal/router"
)

// SnapshotFunc supplies the current per-provider health records.
type SnapshotFunc func() map[router.ProviderID]router.MetricsSnapshot

// RouterCollector exposes the router's health tracker to Prometheus without
// maintaining a second set of counters. Each scrape takes a fresh snapshot.
type RouterCollector struct {
	snapshot SnapshotFunc

	requests            *prometheus.Desc
	successes           *prometheus.Desc
	failures            *prometheus.Desc
	timeouts            *prometheus.Desc
	rateLimitHits       *prometheus.Desc
	consecutiveFailures *prometheus.Desc
	avgLatencyMs        *prometheus.Desc
	failureRate         *prometheus.Desc
	healthScore         *prometheus.Desc
	cooldownActive      *prometheus.Desc
}

// NewRouterCollector creates a collector over the given snapshot source.
func NewRouterCollector(snapshot SnapshotFunc) *RouterCollector {
	labels := []string{"provider"}
	return &RouterCollector{
		snapshot: snapshot,
		requests: prometheus.NewDesc("therapyflow_provider_requests_total",
			"Total attempts recorded against the provider.", labels, nil),
		successes: prometheus.NewDesc("therapyflow_provider_successes_total",
			"Total successful attempts.", labels, nil),
		failures: prometheus.NewDesc("therapyflow_provider_failures_total",
			"Total failed attempts.", labels, nil),
		timeouts: prometheus.NewDesc("therapyflow_provider_timeouts_total",
			"Total attempts that timed out.", labels, nil),
		rateLimitHits: prometheus.NewDesc("therapyflow_provider_rate_limit_hits_total",
			"Total attempts rejected upstream for rate limiting.", labels, nil),
		consecutiveFailures: prometheus.NewDesc("therapyflow_provider_consecutive_failures",
			"Current consecutive failure streak.", labels, nil),
		avgLatencyMs: prometheus.NewDesc("therapyflow_provider_avg_latency_ms",
			"Running mean latency of successful attempts in milliseconds.", labels, nil),
		failureRate: prometheus.NewDesc("therapyflow_provider_failure_rate",
			"Failures over total attempts.", labels, nil),
		healthScore: prometheus.NewDesc("therapyflow_provider_health_score",
			"Composite health score in [0,1].", labels, nil),
		cooldownActive: prometheus.NewDesc("therapyflow_provider_cooldown_active",
			"1 while the provider's circuit breaker is open.", labels, nil),
	}
}

func (c *RouterCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.successes
	ch <- c.failures
	ch <- c.timeouts
	ch <- c.rateLimitHits
	ch <- c.consecutiveFailures
	ch <- c.avgLatencyMs
	ch <- c.failureRate
	ch <- c.healthScore
	ch <- c.cooldownActive
}

func (c *RouterCollector) Collect(ch chan<- prometheus.Metric) {
	for id, snap := range c.snapshot() {
		provider := string(id)
		ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(snap.Requests), provider)
		ch <- prometheus.MustNewConstMetric(c.successes, prometheus.CounterValue, float64(snap.Successes), provider)
		ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(snap.Failures), provider)
		ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(snap.Timeouts), provider)
		ch <- prometheus.MustNewConstMetric(c.rateLimitHits, prometheus.CounterValue, float64(snap.RateLimitHits), provider)
		ch <- prometheus.MustNewConstMetric(c.consecutiveFailures, prometheus.GaugeValue, float64(snap.ConsecutiveFailures), provider)
		ch <- prometheus.MustNewConstMetric(c.avgLatencyMs, prometheus.GaugeValue, snap.AvgLatencyMs, provider)
		ch <- prometheus.MustNewConstMetric(c.failureRate, prometheus.GaugeValue, snap.FailureRate, provider)
		ch <- prometheus.MustNewConstMetric(c.healthScore, prometheus.GaugeValue, snap.HealthScore, provider)

		active := 0.0
		if snap.CircuitOpen {
			active = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.cooldownActive, prometheus.GaugeValue, active, provider)
	}
}
