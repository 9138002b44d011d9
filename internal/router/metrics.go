package router

import (
	"log/slog"
	"sync"
	"time"
)

const (
	defaultFailureThreshold = 5
	defaultCooldownPeriod   = 30 * time.Second
)

// record holds the mutable health state for one provider. All fields except
// timeoutRef are guarded by mu; timeoutRef is fixed at construction.
type record struct {
	mu                  sync.Mutex
	requests            uint64
	successes           uint64
	failures            uint64
	timeouts            uint64
	rateLimitHits       uint64
	consecutiveFailures uint32
	avgLatency          time.Duration
	failureRate         float64
	cooldownUntil       time.Time
	lastErrorKind       ErrorKind

	timeoutRef time.Duration
}

// MetricsSnapshot is a point-in-time copy of one provider's health record.
type MetricsSnapshot struct {
	Requests            uint64     `json:"requests"`
	Successes           uint64     `json:"successes"`
	Failures            uint64     `json:"failures"`
	Timeouts            uint64     `json:"timeouts"`
	RateLimitHits       uint64     `json:"rate_limit_hits"`
	ConsecutiveFailures uint32     `json:"consecutive_failures"`
	AvgLatencyMs        float64    `json:"avg_latency_ms"`
	FailureRate         float64    `json:"failure_rate"`
	HealthScore         float64    `json:"health_score"`
	CircuitOpen         bool       `json:"circuit_open"`
	CooldownUntil       *time.Time `json:"cooldown_until,omitempty"`
	LastErrorKind       ErrorKind  `json:"last_error_kind,omitempty"`
}

// Tracker accumulates per-provider outcome metrics and drives the cooldown
// circuit breaker. Each provider has its own lock; there is no tracker-wide
// lock on the dispatch path.
type Tracker struct {
	records   map[ProviderID]*record
	threshold uint32
	cooldown  time.Duration
}

// NewTracker builds a tracker with one record per registered provider. The
// key set is fixed afterwards, so concurrent readers never race on the map.
func NewTracker(reg *Registry, failureThreshold int, cooldown time.Duration) *Tracker {
	if failureThreshold <= 0 {
		failureThreshold = defaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultCooldownPeriod
	}
	t := &Tracker{
		records:   make(map[ProviderID]*record),
		threshold: uint32(failureThreshold),
		cooldown:  cooldown,
	}
	for _, pc := range reg.All() {
		t.records[pc.ID] = &record{timeoutRef: pc.Timeout}
	}
	return t
}

// RecordOutcome folds one attempt result into the provider's record. Success
// clears the consecutive-failure streak and any active cooldown; a failure
// streak reaching the threshold opens a cooldown window.
func (t *Tracker) RecordOutcome(id ProviderID, success bool, latency time.Duration, kind ErrorKind) {
	rec, ok := t.records[id]
	if !ok {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.requests++
	if success {
		rec.successes++
		rec.consecutiveFailures = 0
		rec.cooldownUntil = time.Time{}
		rec.lastErrorKind = ""
		// Running mean over successful attempts only.
		n := time.Duration(rec.successes)
		rec.avgLatency = (rec.avgLatency*(n-1) + latency) / n
	} else {
		rec.failures++
		rec.consecutiveFailures++
		rec.lastErrorKind = kind
		switch kind {
		case KindTimeout:
			rec.timeouts++
		case KindRateLimit:
			rec.rateLimitHits++
		}
		if rec.consecutiveFailures >= t.threshold {
			opening := !time.Now().Before(rec.cooldownUntil)
			rec.cooldownUntil = time.Now().Add(t.cooldown)
			if opening {
				slog.Warn("provider entered cooldown",
					"provider", id,
					"consecutive_failures", rec.consecutiveFailures,
					"cooldown", t.cooldown,
					"last_error_kind", kind)
			}
		}
	}

	total := rec.requests
	if total == 0 {
		total = 1
	}
	rec.failureRate = float64(rec.failures) / float64(total)
}

// IsOpen reports whether the provider is cooling down. The first observation
// after the window expires clears it and resets the failure streak; there is
// no background timer.
func (t *Tracker) IsOpen(id ProviderID) bool {
	rec, ok := t.records[id]
	if !ok {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.cooldownUntil.IsZero() {
		return false
	}
	if time.Now().Before(rec.cooldownUntil) {
		return true
	}
	rec.cooldownUntil = time.Time{}
	rec.consecutiveFailures = 0
	return false
}

// HealthScore blends failure rate (70%) and latency headroom against the
// provider's timeout (30%) into [0,1]. A provider with no recorded requests
// scores a perfect 1.0.
func (t *Tracker) HealthScore(id ProviderID) float64 {
	rec, ok := t.records[id]
	if !ok {
		return 0
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.healthScoreLocked()
}

func (r *record) healthScoreLocked() float64 {
	if r.requests == 0 {
		return 1.0
	}
	latencyScore := 1.0
	if r.timeoutRef > 0 {
		latencyScore = 1 - float64(r.avgLatency)/float64(r.timeoutRef)
		if latencyScore < 0 {
			latencyScore = 0
		}
	}
	return 0.7*(1-r.failureRate) + 0.3*latencyScore
}

// Snapshot copies every provider record. CircuitOpen reflects the window at
// read time without triggering the lazy self-heal.
func (t *Tracker) Snapshot() map[ProviderID]MetricsSnapshot {
	now := time.Now()
	out := make(map[ProviderID]MetricsSnapshot, len(t.records))
	for id, rec := range t.records {
		rec.mu.Lock()
		snap := MetricsSnapshot{
			Requests:            rec.requests,
			Successes:           rec.successes,
			Failures:            rec.failures,
			Timeouts:            rec.timeouts,
			RateLimitHits:       rec.rateLimitHits,
			ConsecutiveFailures: rec.consecutiveFailures,
			AvgLatencyMs:        float64(rec.avgLatency) / float64(time.Millisecond),
			FailureRate:         rec.failureRate,
			HealthScore:         rec.healthScoreLocked(),
			CircuitOpen:         !rec.cooldownUntil.IsZero() && now.Before(rec.cooldownUntil),
			LastErrorKind:       rec.lastErrorKind,
		}
		if !rec.cooldownUntil.IsZero() {
			until := rec.cooldownUntil
			snap.CooldownUntil = &until
		}
		rec.mu.Unlock()
		out[id] = snap
	}
	return out
}

// Reset zeroes every counter and clears any cooldown windows. Idempotent.
func (t *Tracker) Reset() {
	for _, rec := range t.records {
		rec.mu.Lock()
		rec.requests = 0
		rec.successes = 0
		rec.failures = 0
		rec.timeouts = 0
		rec.rateLimitHits = 0
		rec.consecutiveFailures = 0
		rec.avgLatency = 0
		rec.failureRate = 0
		rec.cooldownUntil = time.Time{}
		rec.lastErrorKind = ""
		rec.mu.Unlock()
	}
}
