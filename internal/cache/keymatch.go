package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// keyMatchPrefix is the Redis key prefix for API key match entries.
	keyMatchPrefix = "auth:keymatch:"
	// keyMatchTTL is deliberately short: the cache only skips the
	// prefix scan and argon2 verification, while revocation, expiry,
	// and owner-active checks always go to the database. A stale
	// entry can therefore never resurrect a dead credential.
	keyMatchTTL = 60 * time.Second
)

// GetKeyMatch returns the key ID previously matched for a credential
// fingerprint, or "" on a miss. Errors are returned so callers can
// distinguish an unreachable cache from a miss, but both are safe to
// treat as a miss.
func (c *Cache) GetKeyMatch(ctx context.Context, fingerprint string) (string, error) {
	keyID, err := c.client.Get(ctx, keyMatchPrefix+fingerprint).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return keyID, nil
}

// SetKeyMatch caches a verified credential-fingerprint-to-key mapping.
func (c *Cache) SetKeyMatch(ctx context.Context, fingerprint, keyID string) error {
	return c.client.Set(ctx, keyMatchPrefix+fingerprint, keyID, keyMatchTTL).Err()
}

// DeleteKeyMatch removes a cached match. Called when a key is revoked so
// the next request pays the full verification path.
func (c *Cache) DeleteKeyMatch(ctx context.Context, fingerprint string) error {
	return c.client.Del(ctx, keyMatchPrefix+fingerprint).Err()
}
