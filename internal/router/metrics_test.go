package router

import (
	"math"
	"sync"
	"testing"
	"time"
)

func testTracker(t *testing.T, threshold int, cooldown time.Duration, pcs ...ProviderConfig) *Tracker {
	t.Helper()
	if len(pcs) == 0 {
		pcs = []ProviderConfig{testProvider(ProviderAnthropic, 1)}
	}
	return NewTracker(testRegistry(t, pcs...), threshold, cooldown)
}

func TestTracker_RecordSuccess(t *testing.T) {
	tr := testTracker(t, 5, time.Minute)

	tr.RecordOutcome(ProviderAnthropic, true, 100*time.Millisecond, "")

	snap := tr.Snapshot()[ProviderAnthropic]
	if snap.Requests != 1 || snap.Successes != 1 || snap.Failures != 0 {
		t.Errorf("expected 1 request, 1 success, got %+v", snap)
	}
	if snap.AvgLatencyMs != 100 {
		t.Errorf("expected avg latency 100ms, got %.2f", snap.AvgLatencyMs)
	}
	if snap.ConsecutiveFailures != 0 {
		t.Errorf("expected zero consecutive failures, got %d", snap.ConsecutiveFailures)
	}
}

func TestTracker_CountsFailureKinds(t *testing.T) {
	tr := testTracker(t, 100, time.Minute)

	tr.RecordOutcome(ProviderAnthropic, false, time.Second, KindTimeout)
	tr.RecordOutcome(ProviderAnthropic, false, time.Millisecond, KindRateLimit)
	tr.RecordOutcome(ProviderAnthropic, false, time.Millisecond, KindServerError)

	snap := tr.Snapshot()[ProviderAnthropic]
	if snap.Failures != 3 {
		t.Errorf("expected 3 failures, got %d", snap.Failures)
	}
	if snap.Timeouts != 1 {
		t.Errorf("expected 1 timeout, got %d", snap.Timeouts)
	}
	if snap.RateLimitHits != 1 {
		t.Errorf("expected 1 rate limit hit, got %d", snap.RateLimitHits)
	}
	if snap.LastErrorKind != KindServerError {
		t.Errorf("expected last error kind server_error, got %s", snap.LastErrorKind)
	}
}

func TestTracker_FailureRateRecomputedEveryUpdate(t *testing.T) {
	tr := testTracker(t, 100, time.Minute)

	tr.RecordOutcome(ProviderAnthropic, false, time.Millisecond, KindServerError)
	if fr := tr.Snapshot()[ProviderAnthropic].FailureRate; fr != 1.0 {
		t.Errorf("expected failure rate 1.0, got %.4f", fr)
	}

	tr.RecordOutcome(ProviderAnthropic, false, time.Millisecond, KindServerError)
	tr.RecordOutcome(ProviderAnthropic, true, time.Millisecond, "")
	if fr := tr.Snapshot()[ProviderAnthropic].FailureRate; math.Abs(fr-2.0/3.0) > 1e-9 {
		t.Errorf("expected failure rate 2/3, got %.4f", fr)
	}
}

func TestTracker_AverageLatencyCoversSuccessesOnly(t *testing.T) {
	tr := testTracker(t, 100, time.Minute)

	tr.RecordOutcome(ProviderAnthropic, true, 100*time.Millisecond, "")
	// A slow failure must not drag the success average.
	tr.RecordOutcome(ProviderAnthropic, false, 900*time.Millisecond, KindTimeout)
	tr.RecordOutcome(ProviderAnthropic, true, 300*time.Millisecond, "")

	snap := tr.Snapshot()[ProviderAnthropic]
	if snap.AvgLatencyMs != 200 {
		t.Errorf("expected avg latency 200ms over successes, got %.2f", snap.AvgLatencyMs)
	}
}

func TestTracker_HealthScoreWithoutTrafficIsPerfect(t *testing.T) {
	tr := testTracker(t, 5, time.Minute)
	if score := tr.HealthScore(ProviderAnthropic); score != 1.0 {
		t.Errorf("expected score 1.0 for untouched provider, got %.4f", score)
	}
}

func TestTracker_HealthScoreBlendsFailureRateAndLatency(t *testing.T) {
	pc := testProvider(ProviderAnthropic, 1)
	pc.Timeout = time.Second
	tr := testTracker(t, 100, time.Minute, pc)

	// One success at a quarter of the timeout: failure term 0.7, latency
	// term 0.3*0.75.
	tr.RecordOutcome(ProviderAnthropic, true, 250*time.Millisecond, "")
	want := 0.7 + 0.3*0.75
	if score := tr.HealthScore(ProviderAnthropic); math.Abs(score-want) > 1e-9 {
		t.Errorf("expected score %.4f, got %.4f", want, score)
	}
}

func TestTracker_HealthScoreClampsSlowLatency(t *testing.T) {
	pc := testProvider(ProviderAnthropic, 1)
	pc.Timeout = 50 * time.Millisecond
	tr := testTracker(t, 100, time.Minute, pc)

	// Average latency beyond the timeout reference floors the latency term
	// at zero rather than going negative.
	tr.RecordOutcome(ProviderAnthropic, true, 100*time.Millisecond, "")
	if score := tr.HealthScore(ProviderAnthropic); math.Abs(score-0.7) > 1e-9 {
		t.Errorf("expected score 0.7 with floored latency term, got %.4f", score)
	}
}

func TestTracker_OpensCooldownAtThreshold(t *testing.T) {
	tr := testTracker(t, 3, time.Minute)

	tr.RecordOutcome(ProviderAnthropic, false, time.Millisecond, KindServerError)
	tr.RecordOutcome(ProviderAnthropic, false, time.Millisecond, KindServerError)
	if tr.IsOpen(ProviderAnthropic) {
		t.Fatal("expected breaker closed below threshold")
	}

	tr.RecordOutcome(ProviderAnthropic, false, time.Millisecond, KindServerError)
	if !tr.IsOpen(ProviderAnthropic) {
		t.Fatal("expected breaker open at threshold")
	}

	snap := tr.Snapshot()[ProviderAnthropic]
	if !snap.CircuitOpen || snap.CooldownUntil == nil {
		t.Errorf("expected snapshot to reflect open circuit, got %+v", snap)
	}
}

func TestTracker_FailurePastThresholdRefreshesCooldown(t *testing.T) {
	tr := testTracker(t, 1, 80*time.Millisecond)

	tr.RecordOutcome(ProviderAnthropic, false, time.Millisecond, KindServerError)
	first := tr.Snapshot()[ProviderAnthropic].CooldownUntil
	if first == nil {
		t.Fatal("expected cooldown window after trip")
	}

	time.Sleep(20 * time.Millisecond)
	tr.RecordOutcome(ProviderAnthropic, false, time.Millisecond, KindServerError)
	second := tr.Snapshot()[ProviderAnthropic].CooldownUntil
	if second == nil || !second.After(*first) {
		t.Error("expected a later failure to refresh the cooldown window")
	}
}

func TestTracker_CooldownSelfHealsLazily(t *testing.T) {
	tr := testTracker(t, 1, 30*time.Millisecond)

	tr.RecordOutcome(ProviderAnthropic, false, time.Millisecond, KindTimeout)
	if !tr.IsOpen(ProviderAnthropic) {
		t.Fatal("expected breaker open after trip")
	}

	time.Sleep(50 * time.Millisecond)

	// Snapshot observes expiry without healing the record.
	snap := tr.Snapshot()[ProviderAnthropic]
	if snap.CircuitOpen {
		t.Error("expected snapshot to report closed circuit after expiry")
	}
	if snap.ConsecutiveFailures != 1 {
		t.Errorf("expected snapshot to leave the streak intact, got %d", snap.ConsecutiveFailures)
	}

	// The first IsOpen after expiry clears the window and the streak.
	if tr.IsOpen(ProviderAnthropic) {
		t.Fatal("expected breaker closed after cooldown expiry")
	}
	snap = tr.Snapshot()[ProviderAnthropic]
	if snap.ConsecutiveFailures != 0 || snap.CooldownUntil != nil {
		t.Errorf("expected healed record, got %+v", snap)
	}
}

func TestTracker_SuccessClearsCooldown(t *testing.T) {
	tr := testTracker(t, 1, time.Hour)

	tr.RecordOutcome(ProviderAnthropic, false, time.Millisecond, KindServerError)
	if !tr.IsOpen(ProviderAnthropic) {
		t.Fatal("expected breaker open after trip")
	}

	// An in-flight attempt that completes successfully closes the window
	// without waiting out the cooldown.
	tr.RecordOutcome(ProviderAnthropic, true, time.Millisecond, "")
	if tr.IsOpen(ProviderAnthropic) {
		t.Error("expected success to clear the cooldown")
	}
	if snap := tr.Snapshot()[ProviderAnthropic]; snap.ConsecutiveFailures != 0 {
		t.Errorf("expected streak reset, got %d", snap.ConsecutiveFailures)
	}
}

func TestTracker_ResetZeroesEverything(t *testing.T) {
	tr := testTracker(t, 1, time.Hour)

	tr.RecordOutcome(ProviderAnthropic, true, 50*time.Millisecond, "")
	tr.RecordOutcome(ProviderAnthropic, false, time.Millisecond, KindRateLimit)
	if !tr.IsOpen(ProviderAnthropic) {
		t.Fatal("expected breaker open before reset")
	}

	tr.Reset()

	snap := tr.Snapshot()[ProviderAnthropic]
	if snap.Requests != 0 || snap.Successes != 0 || snap.Failures != 0 ||
		snap.Timeouts != 0 || snap.RateLimitHits != 0 || snap.ConsecutiveFailures != 0 {
		t.Errorf("expected zeroed counters, got %+v", snap)
	}
	if snap.CooldownUntil != nil || snap.CircuitOpen {
		t.Error("expected reset to clear the cooldown window")
	}
	if snap.HealthScore != 1.0 {
		t.Errorf("expected pristine health score, got %.4f", snap.HealthScore)
	}
	if tr.IsOpen(ProviderAnthropic) {
		t.Error("expected breaker closed after reset")
	}
}

func TestTracker_ConcurrentRecording(t *testing.T) {
	tr := testTracker(t, 1000, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				success := (n+j)%2 == 0
				tr.RecordOutcome(ProviderAnthropic, success, time.Millisecond, KindServerError)
				tr.IsOpen(ProviderAnthropic)
				tr.HealthScore(ProviderAnthropic)
			}
		}(i)
	}
	wg.Wait()

	snap := tr.Snapshot()[ProviderAnthropic]
	if snap.Requests != 1000 {
		t.Errorf("expected 1000 requests, got %d", snap.Requests)
	}
	if snap.Successes+snap.Failures != snap.Requests {
		t.Errorf("expected outcomes to sum to requests, got %+v", snap)
	}
}
