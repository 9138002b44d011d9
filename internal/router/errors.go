package router

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies an attempt failure for retry and failover decisions.
type ErrorKind string

const (
	KindUnknown         ErrorKind = "unknown"
	KindTimeout         ErrorKind = "timeout"
	KindRateLimit       ErrorKind = "rate_limit"
	KindServerError     ErrorKind = "server_error"
	KindValidation      ErrorKind = "validation"
	KindPolicyViolation ErrorKind = "policy_violation"
	KindCircuitOpen     ErrorKind = "circuit_open"
	KindNoProviders     ErrorKind = "no_providers"
)

// Error is the routing error carried through retries and failover. Provider
// is empty for errors raised before any provider was attempted.
type Error struct {
	Kind     ErrorKind
	Provider ProviderID
	Status   int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify maps an arbitrary attempt error onto the error taxonomy. Typed
// routing errors keep their kind; deadline expiry and network timeouts map
// to KindTimeout; everything else is KindUnknown.
func Classify(err error) ErrorKind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return KindTimeout
	}
	return KindUnknown
}

// ProviderFailure records the terminal error observed on one provider during
// a failover sweep.
type ProviderFailure struct {
	Provider ProviderID
	Kind     ErrorKind
	Err      error
}

// ExhaustedError reports that every eligible provider was attempted and
// failed. Attempts preserves failover order, one entry per provider with the
// last underlying cause.
type ExhaustedError struct {
	Operation string
	Attempts  []ProviderFailure
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Provider, a.Kind))
	}
	return fmt.Sprintf("all providers failed for %s: %s", e.Operation, strings.Join(parts, "; "))
}

// Unwrap exposes the per-provider causes to errors.Is and errors.As.
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}
