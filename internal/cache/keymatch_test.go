package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	c, err := New(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	return c, mr
}

func TestKeyMatch_RoundTrip(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.SetKeyMatch(ctx, "fingerprint-1", "key-1"); err != nil {
		t.Fatalf("SetKeyMatch failed: %v", err)
	}

	keyID, err := c.GetKeyMatch(ctx, "fingerprint-1")
	if err != nil {
		t.Fatalf("GetKeyMatch failed: %v", err)
	}
	if keyID != "key-1" {
		t.Errorf("Expected key-1, got: %s", keyID)
	}
}

func TestKeyMatch_MissReturnsEmpty(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)

	keyID, err := c.GetKeyMatch(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("GetKeyMatch failed: %v", err)
	}
	if keyID != "" {
		t.Errorf("Miss should return empty, got: %s", keyID)
	}
}

func TestKeyMatch_Expires(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.SetKeyMatch(ctx, "fingerprint-1", "key-1"); err != nil {
		t.Fatalf("SetKeyMatch failed: %v", err)
	}

	mr.FastForward(keyMatchTTL + time.Second)

	keyID, err := c.GetKeyMatch(ctx, "fingerprint-1")
	if err != nil {
		t.Fatalf("GetKeyMatch failed: %v", err)
	}
	if keyID != "" {
		t.Error("Match should expire after the TTL")
	}
}

func TestKeyMatch_Delete(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()

	c.SetKeyMatch(ctx, "fingerprint-1", "key-1")
	if err := c.DeleteKeyMatch(ctx, "fingerprint-1"); err != nil {
		t.Fatalf("DeleteKeyMatch failed: %v", err)
	}

	keyID, _ := c.GetKeyMatch(ctx, "fingerprint-1")
	if keyID != "" {
		t.Error("Deleted match should not be returned")
	}
}
