package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestCheckWindow_CountsAndAdmits(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := c.CheckWindow(ctx, "client-a", 3, time.Minute, fmt.Sprintf("req-%d", i))
		if err != nil {
			t.Fatalf("CheckWindow failed: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("Request %d should be allowed", i+1)
		}
		if res.Count != int64(i+1) {
			t.Errorf("Count = %d, want %d", res.Count, i+1)
		}
	}

	res, err := c.CheckWindow(ctx, "client-a", 3, time.Minute, "req-over")
	if err != nil {
		t.Fatalf("CheckWindow failed: %v", err)
	}
	if res.Allowed {
		t.Error("Request over the limit should be rejected")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Minute {
		t.Errorf("RetryAfter should be within the window, got %v", res.RetryAfter)
	}
}

func TestCheckWindow_DistinctMembersEachCount(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()

	// Two requests in the same instant must both occupy a slot.
	a, err := c.CheckWindow(ctx, "client-a", 10, time.Minute, "member-a")
	if err != nil {
		t.Fatalf("CheckWindow failed: %v", err)
	}
	b, err := c.CheckWindow(ctx, "client-a", 10, time.Minute, "member-b")
	if err != nil {
		t.Fatalf("CheckWindow failed: %v", err)
	}

	if a.Count != 1 || b.Count != 2 {
		t.Errorf("Counts should be 1 then 2, got %d and %d", a.Count, b.Count)
	}
}

func TestCheckWindow_SeparateKeys(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()

	c.CheckWindow(ctx, "client-a", 1, time.Minute, "m1")
	res, err := c.CheckWindow(ctx, "client-b", 1, time.Minute, "m2")
	if err != nil {
		t.Fatalf("CheckWindow failed: %v", err)
	}
	if !res.Allowed {
		t.Error("Different client keys should not share a window")
	}
}
