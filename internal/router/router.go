// Package router implements resilient multi-provider dispatch: health-ranked
// provider selection, per-attempt deadlines, exponential-backoff retries,
// cooldown circuit breaking, and cross-provider failover.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Gate is consulted once per dispatch before any provider work begins. A
// denial is terminal; no retry or failover follows it.
type Gate interface {
	Allow(ctx context.Context, operation string) (allowed bool, reason string)
}

// Validator checks a successful payload before it is returned to the caller
// and may rewrite it into normalized form.
type Validator interface {
	Validate(payload []byte) ([]byte, error)
}

// Config carries the routing knobs shared across providers.
type Config struct {
	RetryBaseDelay   time.Duration
	FailureThreshold int
	CooldownPeriod   time.Duration
	HealthGap        float64
}

// Router coordinates provider selection, retries, and failover for named
// operations. There is no router-wide lock: health state is guarded per
// provider and rankings are sampled per call.
type Router struct {
	registry *Registry
	tracker  *Tracker
	selector *Selector
	gate     Gate
	cfg      Config
}

// New builds a router over the registry. gate may be nil, in which case
// every operation is allowed. Zero Config fields fall back to defaults.
func New(reg *Registry, gate Gate, cfg Config) *Router {
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	tracker := NewTracker(reg, cfg.FailureThreshold, cfg.CooldownPeriod)
	return &Router{
		registry: reg,
		tracker:  tracker,
		selector: NewSelector(reg, tracker, cfg.HealthGap),
		gate:     gate,
		cfg:      cfg,
	}
}

// Result is a successful dispatch outcome.
type Result struct {
	Provider ProviderID
	Payload  []byte
}

// Run executes op against the best available provider, retrying transient
// failures on the same provider and failing over down the ranked order until
// a provider returns a payload that passes validation. v may be nil to skip
// output validation.
func (r *Router) Run(ctx context.Context, op Operation, v Validator) (*Result, error) {
	if r.gate != nil {
		allowed, reason := r.gate.Allow(ctx, op.Name())
		if !allowed {
			return nil, &Error{Kind: KindPolicyViolation, Message: reason}
		}
	}

	order, err := r.selector.Order()
	if err != nil {
		return nil, err
	}

	failures := make([]ProviderFailure, 0, len(order))
	for _, id := range order {
		pc, ok := r.registry.Get(id)
		if !ok {
			continue
		}
		payload, aerr := r.runProvider(ctx, pc, op, v)
		if aerr == nil {
			return &Result{Provider: id, Payload: payload}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// A policy violation is terminal for the whole call; it never
		// triggers failover.
		if aerr.Kind == KindPolicyViolation {
			return nil, aerr
		}
		failures = append(failures, ProviderFailure{Provider: id, Kind: aerr.Kind, Err: aerr})
		slog.Warn("provider attempts exhausted",
			"operation", op.Name(),
			"provider", id,
			"kind", aerr.Kind)
	}

	return nil, &ExhaustedError{Operation: op.Name(), Attempts: failures}
}

// runProvider drives up to MaxRetries attempts against one provider,
// sleeping exponential backoff between retryable failures. A non-retryable
// failure hands control back for failover immediately.
func (r *Router) runProvider(ctx context.Context, pc ProviderConfig, op Operation, v Validator) ([]byte, *Error) {
	var last *Error
	for attempt := 0; attempt < pc.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying provider",
				"operation", op.Name(),
				"provider", pc.ID,
				"attempt", attempt+1,
				"kind", last.Kind)
			if err := waitBackoff(ctx, r.cfg.RetryBaseDelay, attempt); err != nil {
				return nil, last
			}
		}

		payload, aerr := r.attempt(ctx, pc, op)
		if aerr == nil {
			if v == nil {
				return payload, nil
			}
			normalized, verr := v.Validate(payload)
			if verr == nil {
				return normalized, nil
			}
			// The transport succeeded but the payload failed validation.
			// Fail over instead of burning retries on a provider that is
			// returning unusable output. The success already counted.
			return nil, &Error{Kind: KindValidation, Provider: pc.ID, Err: verr}
		}

		last = aerr
		if !aerr.Kind.Retryable() || ctx.Err() != nil {
			break
		}
	}
	return nil, last
}

// GetMetricsSnapshot returns a point-in-time copy of every provider's health
// record.
func (r *Router) GetMetricsSnapshot() map[ProviderID]MetricsSnapshot {
	return r.tracker.Snapshot()
}

// HealthStatus is the coarse availability view for one provider.
type HealthStatus struct {
	Healthy       bool      `json:"healthy"`
	Enabled       bool      `json:"enabled"`
	CircuitOpen   bool      `json:"circuit_open"`
	HealthScore   float64   `json:"health_score"`
	LastErrorKind ErrorKind `json:"last_error_kind,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
}

// healthyScoreFloor is the health score below which a provider is reported
// unhealthy even though it still receives traffic.
const healthyScoreFloor = 0.5

// GetHealthStatus derives a healthy/unhealthy verdict per provider from the
// current metrics.
func (r *Router) GetHealthStatus() map[ProviderID]HealthStatus {
	snaps := r.tracker.Snapshot()
	now := time.Now()
	out := make(map[ProviderID]HealthStatus, len(snaps))
	for _, pc := range r.registry.All() {
		snap := snaps[pc.ID]
		st := HealthStatus{
			Healthy:       true,
			Enabled:       pc.Enabled,
			CircuitOpen:   snap.CircuitOpen,
			HealthScore:   snap.HealthScore,
			LastErrorKind: snap.LastErrorKind,
			CheckedAt:     now,
		}
		switch {
		case !pc.Enabled:
			st.Healthy = false
			st.Reason = "provider disabled"
		case snap.CircuitOpen:
			st.Healthy = false
			st.Reason = "cooling down after consecutive failures"
		case snap.HealthScore < healthyScoreFloor:
			st.Healthy = false
			st.Reason = fmt.Sprintf("health score %.2f below %.2f", snap.HealthScore, healthyScoreFloor)
		}
		out[pc.ID] = st
	}
	return out
}

// ResetMetrics zeroes every provider's counters and closes any open cooldown
// windows.
func (r *Router) ResetMetrics() {
	r.tracker.Reset()
	slog.Info("router metrics reset")
}
