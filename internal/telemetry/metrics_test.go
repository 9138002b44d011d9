package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/jonathanprocter/therapyflow-router/internal/router"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m.DispatchTotal == nil {
		t.Error("DispatchTotal should not be nil")
	}
	if m.DispatchDurationMs == nil {
		t.Error("DispatchDurationMs should not be nil")
	}
	if m.AttemptTotal == nil {
		t.Error("AttemptTotal should not be nil")
	}
	if m.GuardActionTotal == nil {
		t.Error("GuardActionTotal should not be nil")
	}
	if m.RateLimitHitTotal == nil {
		t.Error("RateLimitHitTotal should not be nil")
	}
}

func TestRecordDispatch(t *testing.T) {
	// Use a fresh registry to avoid polluting the default one
	reg := prometheus.NewRegistry()

	dispatchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_therapyflow_dispatch_total",
		Help: "Test counter",
	}, []string{"operation", "provider", "status"})

	durationMs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_therapyflow_dispatch_duration_ms",
		Help:    "Test histogram",
		Buckets: []float64{100, 500, 1000},
	}, []string{"operation", "provider"})

	reg.MustRegister(dispatchTotal, durationMs)

	m := &Metrics{
		DispatchTotal:      dispatchTotal,
		DispatchDurationMs: durationMs,
	}

	m.RecordDispatch(DispatchLabels{
		Operation:  "session_summary",
		Provider:   "anthropic",
		Status:     "succeeded",
		DurationMs: 420,
	})

	counter, err := dispatchTotal.GetMetricWithLabelValues("session_summary", "anthropic", "succeeded")
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	var metric dto.Metric
	counter.Write(&metric)
	if *metric.Counter.Value != 1 {
		t.Errorf("expected dispatch count 1, got %v", *metric.Counter.Value)
	}
}

func TestRecordGuardAction(t *testing.T) {
	guardTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_guard_action",
		Help: "Test",
	}, []string{"scanner", "action"})

	m := &Metrics{GuardActionTotal: guardTotal}
	m.RecordGuardAction("credentials", "block")

	counter, _ := guardTotal.GetMetricWithLabelValues("credentials", "block")
	var metric dto.Metric
	counter.Write(&metric)
	if *metric.Counter.Value != 1 {
		t.Errorf("expected guard action count 1, got %v", *metric.Counter.Value)
	}
}

func TestRouterCollector(t *testing.T) {
	snapshot := func() map[router.ProviderID]router.MetricsSnapshot {
		return map[router.ProviderID]router.MetricsSnapshot{
			router.ProviderAnthropic: {
				Requests:    10,
				Successes:   9,
				Failures:    1,
				FailureRate: 0.1,
				HealthScore: 0.91,
				CircuitOpen: true,
			},
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(NewRouterCollector(snapshot))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}

	health, ok := byName["therapyflow_provider_health_score"]
	if !ok {
		t.Fatal("health score family missing")
	}
	metric := health.GetMetric()[0]
	if metric.GetGauge().GetValue() != 0.91 {
		t.Errorf("health score = %v, want 0.91", metric.GetGauge().GetValue())
	}
	if metric.GetLabel()[0].GetValue() != "anthropic" {
		t.Errorf("provider label = %s, want anthropic", metric.GetLabel()[0].GetValue())
	}

	requests, ok := byName["therapyflow_provider_requests_total"]
	if !ok {
		t.Fatal("requests family missing")
	}
	if requests.GetMetric()[0].GetCounter().GetValue() != 10 {
		t.Errorf("requests = %v, want 10", requests.GetMetric()[0].GetCounter().GetValue())
	}

	cooldown, ok := byName["therapyflow_provider_cooldown_active"]
	if !ok {
		t.Fatal("cooldown family missing")
	}
	if cooldown.GetMetric()[0].GetGauge().GetValue() != 1 {
		t.Errorf("cooldown active = %v, want 1", cooldown.GetMetric()[0].GetGauge().GetValue())
	}
}
