// Package ratelimit throttles requests per client with a sliding-window
// counter. The primary implementation keeps windows in a shared cache;
// an in-process fallback takes over when the cache is unreachable so
// the service neither fails open nor fails closed.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/boardkit/boardkit/internal/cache"
)

// Result is the outcome of a rate-limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int64
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Limiter checks and counts a request for a client key in one step.
// There is no separate commit: a Check that returns Allowed has already
// consumed one slot of the window.
type Limiter interface {
	Check(ctx context.Context, clientKey string) (*Result, error)
}

// Config holds rate limiter parameters.
type Config struct {
	// Window is the sliding window size.
	Window time.Duration
	// Limit is the request ceiling per window per client.
	Limit int
	// CacheTimeout bounds each shared-cache call before failing over
	// to the in-process limiter.
	CacheTimeout time.Duration
	// Cooldown is how long the failover stays on the in-process
	// limiter before probing the shared cache again.
	Cooldown time.Duration
}

// Defaults balancing usability against abuse resistance.
const (
	DefaultWindow       = time.Minute
	DefaultLimit        = 100
	DefaultCacheTimeout = 50 * time.Millisecond
	DefaultCooldown     = 10 * time.Second
)

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.CacheTimeout <= 0 {
		c.CacheTimeout = DefaultCacheTimeout
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	return c
}

// New selects the limiter implementation at startup. With a cache, the
// shared sliding window is primary and the in-process limiter is the
// failover; without one, the service runs permanently on the in-process
// limiter (no retry loop) - accurate for a single instance, documented
// as approximate for multiple.
func New(cfg Config, c *cache.Cache, logger *slog.Logger) Limiter {
	cfg = cfg.withDefaults()

	memory := NewMemory(cfg)
	if c == nil {
		logger.Warn("rate limiter running in permanent in-process mode, no cache configured")
		return memory
	}

	return NewFailover(NewRedis(cfg, c), memory, cfg, logger)
}
