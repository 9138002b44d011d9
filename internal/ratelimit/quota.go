package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QuotaResult is the outcome of a daily quota check.
type QuotaResult struct {
	Allowed bool
	Used    int64
	Limit   int64
}

// QuotaTracker counts dispatches per API key per UTC day: one Redis
// string per key and day, incremented for every dispatch that actually
// ran. Checks read the counter without touching it, so a denied request
// does not burn quota.
type QuotaTracker struct {
	rdb *redis.Client
}

// NewQuotaTracker creates a quota tracker. A nil client disables
// enforcement, mirroring the rate limiter.
func NewQuotaTracker(rdb *redis.Client) *QuotaTracker {
	return &QuotaTracker{rdb: rdb}
}

func quotaKey(keyID string, day time.Time) string {
	return fmt.Sprintf("therapyflow:quota:daily:%s:%s", keyID, day.Format("2006-01-02"))
}

// CheckDailyDispatches reports whether keyID still has dispatches left
// for today.
func (q *QuotaTracker) CheckDailyDispatches(ctx context.Context, keyID string, limit int64) (QuotaResult, error) {
	if q.rdb == nil {
		return QuotaResult{Allowed: true, Limit: limit}, nil
	}

	used, err := q.rdb.Get(ctx, quotaKey(keyID, time.Now().UTC())).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		used = 0
	case err != nil:
		// Fail open on Redis errors.
		return QuotaResult{Allowed: true, Limit: limit}, nil
	}

	return QuotaResult{Allowed: used < limit, Used: used, Limit: limit}, nil
}

// RecordDispatch counts one completed dispatch against keyID. The
// counter expires an hour past the end of its UTC day.
func (q *QuotaTracker) RecordDispatch(ctx context.Context, keyID string) error {
	if q.rdb == nil {
		return nil
	}

	now := time.Now().UTC()
	key := quotaKey(keyID, now)
	nextDay := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)

	pipe := q.rdb.Pipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, nextDay.Add(time.Hour))
	_, err := pipe.Exec(ctx)
	return err
}
