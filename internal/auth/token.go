package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretBytes is the minimum signing-secret entropy accepted by the
// token service. Construction fails below this; production startup
// treats that as a configuration error.
const MinSecretBytes = 32

// ErrWeakSecret indicates the signing secret is below minimum entropy.
var ErrWeakSecret = errors.New("signing secret below minimum length")

// TokenService issues and validates stateless session tokens.
// Tokens are HS256 JWTs encoding {user_id, iat, exp}; there is no
// server-side revocation list, short expiry is the mitigation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given signing secret
// and session lifetime.
func NewTokenService(secret []byte, ttl time.Duration) (*TokenService, error) {
	if len(secret) < MinSecretBytes {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrWeakSecret, len(secret), MinSecretBytes)
	}
	return &TokenService{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL returns the configured session lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed session token for the user.
// Pure function of the secret and claims; no side effects.
func (s *TokenService) Issue(userID string) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Validate verifies a session token and returns the encoded user ID.
// The signature is checked before anything else; no database access
// happens here. Validity requires now in [iat, exp), exp exclusive.
func (s *TokenService) Validate(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", ErrMalformedCredential
		default:
			return "", ErrInvalidSignature
		}
	}

	if claims.Subject == "" {
		return "", ErrMalformedCredential
	}

	return claims.Subject, nil
}
