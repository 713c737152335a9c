package ratelimit

import (
	"context"
	"sync"
	"time"
)

// pruneEvery controls how often a Check triggers a full sweep of stale
// client windows, keeping the map from growing without bound.
const pruneEvery = 256

// MemoryLimiter is the in-process sliding-window fallback. Windows are
// per-client timestamp slices guarded by a mutex so concurrent requests
// from the same client never under-count. Accuracy is reduced across
// multiple service instances; that trade-off is accepted by design of
// the failover path.
type MemoryLimiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	windows map[string][]time.Time
	checks  int
}

// NewMemory creates an in-process limiter.
func NewMemory(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		windows: make(map[string][]time.Time),
	}
}

// Check counts one request for the client key.
func (l *MemoryLimiter) Check(_ context.Context, clientKey string) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	l.checks++
	if l.checks%pruneEvery == 0 {
		l.pruneLocked(cutoff)
	}

	window := l.windows[clientKey]
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.cfg.Limit {
		l.windows[clientKey] = kept
		retryAfter := kept[0].Add(l.cfg.Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return &Result{
			Allowed:    false,
			Limit:      l.cfg.Limit,
			Remaining:  0,
			RetryAfter: retryAfter,
			ResetAt:    now.Add(l.cfg.Window),
		}, nil
	}

	kept = append(kept, now)
	l.windows[clientKey] = kept

	return &Result{
		Allowed:   true,
		Limit:     l.cfg.Limit,
		Remaining: int64(l.cfg.Limit - len(kept)),
		ResetAt:   now.Add(l.cfg.Window),
	}, nil
}

// pruneLocked drops clients whose windows hold no live timestamps.
func (l *MemoryLimiter) pruneLocked(cutoff time.Time) {
	for key, window := range l.windows {
		live := false
		for _, ts := range window {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.windows, key)
		}
	}
}
