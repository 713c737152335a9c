package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/boardkit/boardkit/internal/cache"
)

// RedisLimiter keeps sliding windows in the shared cache so all service
// instances account against the same ceiling.
type RedisLimiter struct {
	cache *cache.Cache
	cfg   Config
}

// NewRedis creates a cache-backed limiter.
func NewRedis(cfg Config, c *cache.Cache) *RedisLimiter {
	return &RedisLimiter{cache: c, cfg: cfg.withDefaults()}
}

// Check counts one request for the client key.
func (l *RedisLimiter) Check(ctx context.Context, clientKey string) (*Result, error) {
	// Unique member per request so simultaneous arrivals each count.
	member := uuid.NewString()

	res, err := l.cache.CheckWindow(ctx, clientKey, l.cfg.Limit, l.cfg.Window, member)
	if err != nil {
		return nil, err
	}

	remaining := int64(l.cfg.Limit) - res.Count
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:    res.Allowed,
		Limit:      l.cfg.Limit,
		Remaining:  remaining,
		RetryAfter: res.RetryAfter,
		ResetAt:    time.Now().Add(l.cfg.Window),
	}, nil
}
