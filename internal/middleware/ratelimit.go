package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/boardkit/boardkit/internal/auth"
	"github.com/boardkit/boardkit/internal/metrics"
	"github.com/boardkit/boardkit/internal/ratelimit"
)

// RateLimitConfig holds configuration for the rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter ratelimit.Limiter
	Metrics metrics.Recorder
	Enabled bool
}

// RateLimit returns middleware that enforces a sliding-window request
// limit per client IP. The limiter runs before authentication, so the
// key never depends on the Authorization header: an unverified
// credential must not open a fresh window, otherwise rotating garbage
// bearer values would sidestep the ceiling entirely. Invalid
// credentials burn the same per-IP budget as valid ones.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := rateLimitKey(r)

			result, err := cfg.Limiter.Check(r.Context(), clientKey)
			if err != nil {
				// The failover limiter absorbs backend errors; reaching
				// here means even the in-memory path failed. Log and
				// let the request through rather than blocking traffic.
				cfg.Logger.Error("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, result)

			if !result.Allowed {
				cfg.Metrics.IncRateLimitRejected()
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("ip", GetClientIP(r.Context())),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", int64(result.RetryAfter.Seconds())),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))
				writeRateLimitError(w, result.RetryAfter)
				return
			}

			cfg.Metrics.IncRateLimitAllowed()
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitKey derives the limiter key for a request. Always the
// resolved client IP; credentials are not trusted here because nothing
// has verified them yet.
func rateLimitKey(r *http.Request) string {
	return "ip:" + auth.Fingerprint(GetClientIP(r.Context()))
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, result *ratelimit.Result) {
	if result.Limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// retryAfterSeconds rounds a retry interval up to whole seconds.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// writeRateLimitError writes a 429 Too Many Requests response.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	msg := fmt.Sprintf(`{"error":{"code":"RATE_LIMITED","message":"Rate limit exceeded. Retry after %d seconds."}}`,
		retryAfterSeconds(retryAfter))
	_, _ = w.Write([]byte(msg))
}
