// Package policy implements the dispatch gate: either a static
// configuration-driven kill switch or an OPA-evaluated rego bundle.
package policy

import (
	"context"
	"sync/atomic"
)

// Static is the platform-wide dispatch kill switch. SetAllowed may run
// concurrently with Allow, e.g. from a configuration reload.
type Static struct {
	allowed atomic.Bool
}

func NewStatic(allowed bool) *Static {
	s := &Static{}
	s.allowed.Store(allowed)
	return s
}

// Allow reports whether dispatch is currently enabled. The operation name is
// ignored; static mode has no per-operation rules.
func (s *Static) Allow(ctx context.Context, operation string) (bool, string) {
	if s.allowed.Load() {
		return true, ""
	}
	return false, "dispatch disabled by configuration"
}

func (s *Static) SetAllowed(v bool) {
	s.allowed.Store(v)
}
