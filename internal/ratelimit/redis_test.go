package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/boardkit/boardkit/internal/cache"
)

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	c, err := cache.New(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("cache.New failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	return c, mr
}

func TestRedisLimiter_AllowsUpToLimit(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	limiter := NewRedis(Config{Window: time.Minute, Limit: 5}, c)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := limiter.Check(ctx, "client-a")
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}

	res, err := limiter.Check(ctx, "client-a")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.Allowed {
		t.Error("Request over the limit should be rejected")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter should be positive, got %v", res.RetryAfter)
	}
}

func TestRedisLimiter_IsolatesClients(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	limiter := NewRedis(Config{Window: time.Minute, Limit: 1}, c)
	ctx := context.Background()

	if res, _ := limiter.Check(ctx, "client-a"); !res.Allowed {
		t.Fatal("client-a first request should be allowed")
	}
	if res, _ := limiter.Check(ctx, "client-a"); res.Allowed {
		t.Error("client-a second request should be rejected")
	}
	if res, _ := limiter.Check(ctx, "client-b"); !res.Allowed {
		t.Error("client-b should have its own window")
	}
}

func TestRedisLimiter_ErrorWhenUnreachable(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	limiter := NewRedis(Config{Window: time.Minute, Limit: 5}, c)
	mr.Close()

	if _, err := limiter.Check(context.Background(), "client-a"); err == nil {
		t.Error("Check against a dead cache should return an error")
	}
}

func TestFailover_EndToEndWithCacheOutage(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	cfg := Config{Window: time.Minute, Limit: 3, Cooldown: time.Minute}
	limiter := NewFailover(NewRedis(cfg, c), NewMemory(cfg), cfg, discardLogger())
	ctx := context.Background()

	// Healthy path goes through the shared cache.
	if res, err := limiter.Check(ctx, "client-a"); err != nil || !res.Allowed {
		t.Fatalf("Healthy check failed: res=%+v err=%v", res, err)
	}

	// Cache outage: enforcement continues in-process.
	mr.Close()
	for i := 0; i < 3; i++ {
		res, err := limiter.Check(ctx, "client-a")
		if err != nil {
			t.Fatalf("Fallback check failed: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("Fallback request %d should be allowed", i+1)
		}
	}
	res, err := limiter.Check(ctx, "client-a")
	if err != nil {
		t.Fatalf("Fallback check failed: %v", err)
	}
	if res.Allowed {
		t.Error("Fallback should enforce its own window, not fail open")
	}
}
