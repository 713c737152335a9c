package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boardkit/boardkit/internal/model"
	"github.com/boardkit/boardkit/internal/repository"
)

type fakeUserStore struct {
	users map[string]*model.User
	err   error
}

func (s *fakeUserStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

type fakeKeyStore struct {
	keys        map[string]*model.APIKey
	prefixCalls int
}

func (s *fakeKeyStore) GetAPIKeyByID(_ context.Context, id string) (*model.APIKey, error) {
	key, ok := s.keys[id]
	if !ok {
		return nil, errors.New("key not found")
	}
	return key, nil
}

func (s *fakeKeyStore) GetAPIKeysByPrefix(_ context.Context, prefix string) ([]*model.APIKey, error) {
	s.prefixCalls++
	var matches []*model.APIKey
	for _, key := range s.keys {
		if key.KeyPrefix == prefix && key.RevokedAt == nil {
			matches = append(matches, key)
		}
	}
	return matches, nil
}

type fakeMatchCache struct {
	matches map[string]string
}

func (c *fakeMatchCache) GetKeyMatch(_ context.Context, fingerprint string) (string, error) {
	return c.matches[fingerprint], nil
}

func (c *fakeMatchCache) SetKeyMatch(_ context.Context, fingerprint, keyID string) error {
	c.matches[fingerprint] = keyID
	return nil
}

type resolverEnv struct {
	resolver *Resolver
	users    *fakeUserStore
	keys     *fakeKeyStore
	cache    *fakeMatchCache
	tokens   *TokenService
	key      *GeneratedKey
}

func newResolverEnv(t *testing.T) *resolverEnv {
	t.Helper()

	tokens, err := NewTokenService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}

	generated, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}

	users := &fakeUserStore{users: map[string]*model.User{
		"user-1": {ID: "user-1", Username: "alice", IsActive: true},
		"user-2": {ID: "user-2", Username: "bob", IsActive: false},
		"admin-1": {ID: "admin-1", Username: "root", IsActive: true, IsAdmin: true},
	}}
	keys := &fakeKeyStore{keys: map[string]*model.APIKey{
		"key-1": {
			ID:        "key-1",
			UserID:    "user-1",
			KeyHash:   generated.Hash,
			KeyPrefix: generated.Prefix,
			Scopes:    []string{model.ScopeRead, model.ScopeWrite},
			CreatedAt: time.Now().UTC(),
		},
	}}
	cache := &fakeMatchCache{matches: map[string]string{}}

	return &resolverEnv{
		resolver: NewResolver(users, keys, tokens, cache),
		users:    users,
		keys:     keys,
		cache:    cache,
		tokens:   tokens,
		key:      generated,
	}
}

func TestResolver_SessionToken(t *testing.T) {
	t.Parallel()

	env := newResolverEnv(t)
	token, _, err := env.tokens.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	principal, err := env.resolver.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if principal.UserID != "user-1" {
		t.Errorf("Expected user-1, got: %s", principal.UserID)
	}
	if principal.Source != model.SourceSession {
		t.Errorf("Expected session source, got: %s", principal.Source)
	}
	if principal.KeyID != "" {
		t.Error("Session principal should carry no key ID")
	}
}

func TestResolver_SessionInactiveUser(t *testing.T) {
	t.Parallel()

	env := newResolverEnv(t)
	token, _, err := env.tokens.Issue("user-2")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := env.resolver.Resolve(context.Background(), token); !errors.Is(err, ErrUserInactive) {
		t.Errorf("Expected ErrUserInactive, got: %v", err)
	}
}

func TestResolver_SessionVanishedUser(t *testing.T) {
	t.Parallel()

	env := newResolverEnv(t)
	token, _, err := env.tokens.Issue("user-gone")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// A token for a deleted user fails the same way as a deactivated one.
	if _, err := env.resolver.Resolve(context.Background(), token); !errors.Is(err, ErrUserInactive) {
		t.Errorf("Expected ErrUserInactive, got: %v", err)
	}
}

func TestResolver_SessionStoreOutage(t *testing.T) {
	t.Parallel()

	env := newResolverEnv(t)
	token, _, err := env.tokens.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// A store failure on a validly signed token is not a credential
	// problem and must not be classified as one.
	outage := errors.New("connection refused")
	env.users.err = outage

	_, err = env.resolver.Resolve(context.Background(), token)
	if !errors.Is(err, outage) {
		t.Fatalf("Expected the store error, got: %v", err)
	}
	if IsResolutionError(err) {
		t.Error("Store outage should not be a resolution error")
	}
}

func TestResolver_APIKeyOwnerStoreOutage(t *testing.T) {
	t.Parallel()

	env := newResolverEnv(t)

	outage := errors.New("connection refused")
	env.users.err = outage

	_, err := env.resolver.Resolve(context.Background(), env.key.Plaintext)
	if !errors.Is(err, outage) {
		t.Fatalf("Expected the store error, got: %v", err)
	}
	if IsResolutionError(err) {
		t.Error("Store outage should not be a resolution error")
	}
}

func TestResolver_MissingCredential(t *testing.T) {
	t.Parallel()

	env := newResolverEnv(t)
	if _, err := env.resolver.Resolve(context.Background(), ""); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("Expected ErrMissingCredential, got: %v", err)
	}
}

func TestResolver_APIKey(t *testing.T) {
	t.Parallel()

	env := newResolverEnv(t)

	principal, err := env.resolver.Resolve(context.Background(), env.key.Plaintext)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if principal.UserID != "user-1" {
		t.Errorf("Expected user-1, got: %s", principal.UserID)
	}
	if principal.Source != model.SourceAPIKey {
		t.Errorf("Expected api_key source, got: %s", principal.Source)
	}
	if principal.KeyID != "key-1" {
		t.Errorf("Expected key-1, got: %s", principal.KeyID)
	}
	if len(principal.Scopes) != 2 {
		t.Errorf("Expected 2 scopes, got: %v", principal.Scopes)
	}
}

func TestResolver_APIKeyMalformed(t *testing.T) {
	t.Parallel()

	env := newResolverEnv(t)
	if _, err := env.resolver.Resolve(context.Background(), "sk_bogus"); !errors.Is(err, ErrMalformedCredential) {
		t.Errorf("Expected ErrMalformedCredential, got: %v", err)
	}
}

func TestResolver_APIKeyWrongSecret(t *testing.T) {
	t.Parallel()

	env := newResolverEnv(t)

	// Same prefix but a different secret: candidate set is non-empty,
	// the argon2 check rejects it.
	wrong := "sk_" + env.key.Prefix + "_" + Fingerprint("something-else") + Fingerprint("padding")
	if !ValidateKeyFormat(wrong) {
		t.Fatalf("test key malformed: %s", wrong)
	}

	if _, err := env.resolver.Resolve(context.Background(), wrong); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got: %v", err)
	}
}

func TestResolver_APIKeyRevoked(t *testing.T) {
	t.Parallel()

	env := newResolverEnv(t)
	now := time.Now().UTC()
	env.keys.keys["key-1"].RevokedAt = &now

	// Prime the cache first so revocation is checked even on a cache hit.
	env.cache.matches[Fingerprint(env.key.Plaintext)] = "key-1"

	if _, err := env.resolver.Resolve(context.Background(), env.key.Plaintext); !errors.Is(err, ErrKeyRevoked) {
		t.Errorf("Expected ErrKeyRevoked, got: %v", err)
	}
}

func TestResolver_APIKeyExpired(t *testing.T) {
	t.Parallel()

	env := newResolverEnv(t)
	past := time.Now().UTC().Add(-time.Hour)
	env.keys.keys["key-1"].ExpiresAt = &past

	if _, err := env.resolver.Resolve(context.Background(), env.key.Plaintext); !errors.Is(err, ErrKeyExpired) {
		t.Errorf("Expected ErrKeyExpired, got: %v", err)
	}
}

func TestResolver_APIKeyInactiveOwner(t *testing.T) {
	t.Parallel()

	env := newResolverEnv(t)
	env.users.users["user-1"].IsActive = false

	if _, err := env.resolver.Resolve(context.Background(), env.key.Plaintext); !errors.Is(err, ErrUserInactive) {
		t.Errorf("Expected ErrUserInactive, got: %v", err)
	}
}

func TestResolver_MatchCacheSkipsPrefixScan(t *testing.T) {
	t.Parallel()

	env := newResolverEnv(t)
	ctx := context.Background()

	if _, err := env.resolver.Resolve(ctx, env.key.Plaintext); err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	if env.keys.prefixCalls != 1 {
		t.Fatalf("Expected one prefix scan, got %d", env.keys.prefixCalls)
	}

	// Second resolution should be served from the match cache.
	if _, err := env.resolver.Resolve(ctx, env.key.Plaintext); err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if env.keys.prefixCalls != 1 {
		t.Errorf("Cached resolution should not rescan, got %d scans", env.keys.prefixCalls)
	}
}

func TestResolver_NilCache(t *testing.T) {
	t.Parallel()

	env := newResolverEnv(t)
	resolver := NewResolver(env.users, env.keys, env.tokens, nil)

	if _, err := resolver.Resolve(context.Background(), env.key.Plaintext); err != nil {
		t.Fatalf("Resolve without cache failed: %v", err)
	}
}

func TestIsResolutionError(t *testing.T) {
	t.Parallel()

	for _, err := range resolutionErrors {
		if !IsResolutionError(err) {
			t.Errorf("%v should be a resolution error", err)
		}
	}
	if IsResolutionError(errors.New("connection refused")) {
		t.Error("Infrastructure errors should not be resolution errors")
	}
}
