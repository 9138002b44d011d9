package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jonathanprocter/therapyflow-router/internal/auth"
	"github.com/jonathanprocter/therapyflow-router/internal/config"
	"github.com/jonathanprocter/therapyflow-router/internal/httputil"
	"github.com/jonathanprocter/therapyflow-router/internal/telemetry"
)

const (
	headerRateLimitRequests          = "X-RateLimit-Limit-Requests"
	headerRateLimitRemainingRequests = "X-RateLimit-Remaining-Requests"
	headerRateLimitReset             = "X-RateLimit-Reset-Requests"
	headerRetryAfter                 = "Retry-After"
)

// effectiveLimit prefers the per-key override when one is set.
func effectiveLimit(perKey, fallback int) int {
	if perKey > 0 {
		return perKey
	}
	return fallback
}

// Middleware enforces the per-key request rate and the daily dispatch
// quota. Limits come from the key record, falling back to the platform
// defaults in live config.
func Middleware(limiter *Limiter, quota *QuotaTracker, limits func() config.LimitsConfig, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")

			authInfo, ok := auth.AuthFromContext(r.Context())
			if !ok {
				// Unauthenticated traffic is auth's problem, not ours.
				next.ServeHTTP(w, r)
				return
			}

			defaults := limits()
			rpm := effectiveLimit(authInfo.RPMLimit, defaults.DefaultRPM)

			result, _ := limiter.Check(r.Context(), fmt.Sprintf("rpm:%s", authInfo.KeyID), int64(rpm), time.Minute)

			// Headers go out on allowed responses too, so clients can
			// pace themselves before hitting the wall.
			w.Header().Set(headerRateLimitRequests, strconv.Itoa(rpm))
			w.Header().Set(headerRateLimitRemainingRequests, strconv.FormatInt(result.Remaining, 10))
			w.Header().Set(headerRateLimitReset, result.ResetAt.Format(time.RFC3339))

			if !result.Allowed {
				slog.Warn("request rate limit hit",
					"request_id", reqID,
					"key_id", authInfo.KeyID,
					"dimension", "rpm",
					"limit", rpm,
				)
				if metrics != nil {
					metrics.RecordRateLimitHit("rpm")
				}
				w.Header().Set(headerRetryAfter, strconv.Itoa(int(result.RetryAfter.Seconds())))
				httputil.WriteRateLimitError(w, reqID,
					fmt.Sprintf("Request rate limit of %d per minute reached. Retry after %s", rpm, result.ResetAt.Format(time.RFC3339)))
				return
			}

			if daily := effectiveLimit(authInfo.DailyDispatchLimit, defaults.DefaultDailyDispatches); daily > 0 {
				quotaResult, _ := quota.CheckDailyDispatches(r.Context(), authInfo.KeyID, int64(daily))
				if !quotaResult.Allowed {
					slog.Warn("daily dispatch quota exceeded",
						"request_id", reqID,
						"key_id", authInfo.KeyID,
						"used", quotaResult.Used,
						"limit", quotaResult.Limit,
					)
					if metrics != nil {
						metrics.RecordRateLimitHit("daily_quota")
					}
					httputil.WriteRateLimitError(w, reqID,
						fmt.Sprintf("Daily dispatch quota exceeded: used %d of %d", quotaResult.Used, quotaResult.Limit))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
