package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FailoverLimiter routes checks to the shared-cache limiter and trips to
// the in-process fallback when the cache errors or exceeds its timeout
// budget. Enforcement continues either way: cache trouble is logged,
// never surfaced to the client.
type FailoverLimiter struct {
	primary  Limiter
	fallback Limiter
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	mu           sync.Mutex
	trippedUntil time.Time
}

// NewFailover wraps a primary limiter with an in-process fallback.
func NewFailover(primary, fallback Limiter, cfg Config, logger *slog.Logger) *FailoverLimiter {
	return &FailoverLimiter{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
}

// Check counts one request for the client key.
func (l *FailoverLimiter) Check(ctx context.Context, clientKey string) (*Result, error) {
	if l.tripped() {
		return l.fallback.Check(ctx, clientKey)
	}

	checkCtx, cancel := context.WithTimeout(ctx, l.cfg.CacheTimeout)
	res, err := l.primary.Check(checkCtx, clientKey)
	cancel()

	if err != nil {
		l.trip(err)
		return l.fallback.Check(ctx, clientKey)
	}

	return res, nil
}

// FallbackActive reports whether checks are currently served in-process.
func (l *FailoverLimiter) FallbackActive() bool {
	return l.tripped()
}

func (l *FailoverLimiter) tripped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now().Before(l.trippedUntil)
}

// trip switches to the fallback until the cooldown elapses, after which
// the next check probes the cache again.
func (l *FailoverLimiter) trip(cause error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	until := l.now().Add(l.cfg.Cooldown)
	if l.trippedUntil.Before(until) {
		l.trippedUntil = until
		l.logger.Warn("rate limit cache unavailable, using in-process fallback",
			slog.String("error", cause.Error()),
			slog.Duration("cooldown", l.cfg.Cooldown),
		)
	}
}
