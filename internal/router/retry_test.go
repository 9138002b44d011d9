package router

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitBackoff_DelayDoublesPerAttempt(t *testing.T) {
	ctx := context.Background()
	base := 10 * time.Millisecond

	var elapsed [3]time.Duration
	for i, attempt := range []int{1, 2, 3} {
		start := time.Now()
		if err := waitBackoff(ctx, base, attempt); err != nil {
			t.Fatalf("waitBackoff(attempt=%d): %v", attempt, err)
		}
		elapsed[i] = time.Since(start)
	}

	wants := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	for i, want := range wants {
		if elapsed[i] < want {
			t.Errorf("attempt %d: expected at least %s, got %s", i+1, want, elapsed[i])
		}
	}
	if !(elapsed[0] < elapsed[1] && elapsed[1] < elapsed[2]) {
		t.Errorf("expected monotonically growing delays, got %v", elapsed)
	}
}

func TestWaitBackoff_CancelCutsSleepShort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := waitBackoff(ctx, 500*time.Millisecond, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("expected cancellation to cut the sleep short, slept %s", elapsed)
	}
}
