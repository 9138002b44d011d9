package router

import (
	"context"
	"time"
)

const defaultRetryBaseDelay = 250 * time.Millisecond

// Retryable reports whether another attempt against the same provider can
// plausibly succeed. Only transient transport conditions qualify.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTimeout, KindRateLimit, KindServerError:
		return true
	default:
		return false
	}
}

// waitBackoff sleeps the exponential delay owed before attempt number
// `attempt` (zero-based) against the same provider: base*2^(attempt-1).
// Caller cancellation cuts the sleep short.
func waitBackoff(ctx context.Context, base time.Duration, attempt int) error {
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	delay := base * time.Duration(1<<(attempt-1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
