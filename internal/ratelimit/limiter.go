package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LimitResult reports the outcome of a sliding-window check.
type LimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter enforces per-key request rates with one Redis sorted set per
// bucket. Each member is a single request scored by its arrival time in
// unix microseconds, so trimming everything older than the window and
// counting what survives yields the exact rate over the trailing
// interval rather than a fixed-bucket approximation.
//
// A nil client disables enforcement entirely, and Redis errors are
// swallowed: a dispatch slipping past the limit is better than a cache
// hiccup locking every clinician out at once.
type Limiter struct {
	rdb *redis.Client
}

// NewLimiter wraps rdb. Pass nil to run with enforcement off.
func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb}
}

// checkScript trims, counts, and conditionally records one request in a
// single atomic round trip.
//
//	KEYS[1] bucket key
//	ARGV[1] trailing-window cutoff, unix micros
//	ARGV[2] arrival time, unix micros
//	ARGV[3] request ceiling for the window
//	ARGV[4] bucket TTL in seconds
//	ARGV[5] member suffix, so arrivals that share a microsecond do
//	        not collapse into one entry
//
// The reply is {used, allowed, horizon}: horizon is the arrival time of
// the oldest surviving request, and a slot frees up exactly one window
// after it.
var checkScript = redis.NewScript(`
local cutoff = tonumber(ARGV[1])
local ceiling = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, cutoff)
local used = redis.call('ZCARD', KEYS[1])

if used >= ceiling then
	local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
	redis.call('EXPIRE', KEYS[1], ARGV[4])
	if oldest[2] then
		return {used, 0, tonumber(oldest[2])}
	end
	return {used, 0, tonumber(ARGV[2])}
end

redis.call('ZADD', KEYS[1], tonumber(ARGV[2]), ARGV[2] .. '-' .. ARGV[5])
redis.call('EXPIRE', KEYS[1], ARGV[4])
return {used + 1, 1, tonumber(ARGV[2])}
`)

// Check records one request against key and reports whether it fit
// inside the window. On denial, RetryAfter is the time until the oldest
// in-window request ages out: the earliest instant a retry can succeed,
// not an estimate.
func (l *Limiter) Check(ctx context.Context, key string, limit int64, window time.Duration) (LimitResult, error) {
	now := time.Now()
	if l.rdb == nil {
		return LimitResult{Allowed: true, Remaining: limit - 1, ResetAt: now.Add(window)}, nil
	}

	bucket := fmt.Sprintf("therapyflow:rl:%s", key)
	cutoff := now.Add(-window).UnixMicro()
	ttl := int64(window.Seconds()) + 1

	reply, err := checkScript.Run(ctx, l.rdb, []string{bucket},
		cutoff, now.UnixMicro(), limit, ttl, uuid.NewString(),
	).Int64Slice()
	if err != nil || len(reply) < 3 {
		// Fail open on Redis errors.
		return LimitResult{Allowed: true, Remaining: limit, ResetAt: now.Add(window)}, nil
	}

	used, allowed := reply[0], reply[1] == 1
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	res := LimitResult{Allowed: allowed, Remaining: remaining, ResetAt: now.Add(window)}
	if !allowed {
		freesAt := time.UnixMicro(reply[2]).Add(window)
		if wait := freesAt.Sub(now); wait > 0 {
			res.RetryAfter = wait
			res.ResetAt = freesAt
		} else {
			res.RetryAfter = time.Second
		}
	}
	return res, nil
}
