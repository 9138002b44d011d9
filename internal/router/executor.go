package router

import (
	"context"
	"errors"
	"time"
)

// Operation is a unit of provider-agnostic work the router can dispatch.
// Run must honor ctx and return the canonical payload for the operation.
type Operation interface {
	Name() string
	Run(ctx context.Context, provider ProviderID) ([]byte, error)
}

// NewOperation adapts a function into a named Operation.
func NewOperation(name string, fn func(ctx context.Context, provider ProviderID) ([]byte, error)) Operation {
	return &funcOperation{name: name, fn: fn}
}

type funcOperation struct {
	name string
	fn   func(context.Context, ProviderID) ([]byte, error)
}

func (o *funcOperation) Name() string { return o.name }

func (o *funcOperation) Run(ctx context.Context, provider ProviderID) ([]byte, error) {
	return o.fn(ctx, provider)
}

// attempt runs op once against a single provider under its configured
// deadline, classifies the outcome, and records it exactly once.
func (r *Router) attempt(ctx context.Context, pc ProviderConfig, op Operation) ([]byte, *Error) {
	// The selector filtered on the breaker, but a concurrent attempt may
	// have tripped it since. Surface without recording: the streak that
	// opened the window already counted.
	if r.tracker.IsOpen(pc.ID) {
		return nil, &Error{Kind: KindCircuitOpen, Provider: pc.ID, Message: "circuit breaker open"}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, pc.Timeout)
	defer cancel()

	start := time.Now()
	payload, err := op.Run(attemptCtx, pc.ID)
	latency := time.Since(start)

	if err == nil {
		r.tracker.RecordOutcome(pc.ID, true, latency, "")
		return payload, nil
	}

	kind := Classify(err)
	r.tracker.RecordOutcome(pc.ID, false, latency, kind)
	return nil, attemptError(pc.ID, kind, err)
}

// attemptError normalizes an operation error into a *Error attributed to the
// attempted provider.
func attemptError(id ProviderID, kind ErrorKind, err error) *Error {
	var rerr *Error
	if errors.As(err, &rerr) {
		e := *rerr
		if e.Provider == "" {
			e.Provider = id
		}
		return &e
	}
	return &Error{Kind: kind, Provider: id, Err: err}
}
