package auth

import "errors"

// Typed resolution failures. Handlers map every one of these to the same
// generic 401 response so callers cannot distinguish which mode occurred.
var (
	// ErrMissingCredential indicates no credential was presented.
	ErrMissingCredential = errors.New("missing credential")
	// ErrMalformedCredential indicates the credential is structurally invalid.
	ErrMalformedCredential = errors.New("malformed credential")
	// ErrInvalidSignature indicates a session token failed signature verification.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrTokenExpired indicates a session token is outside its validity window.
	ErrTokenExpired = errors.New("session token expired")
	// ErrKeyNotFound indicates no active API key matched the presented secret.
	ErrKeyNotFound = errors.New("API key not found")
	// ErrKeyExpired indicates the API key has passed its expiry.
	ErrKeyExpired = errors.New("API key expired")
	// ErrKeyRevoked indicates the API key has been revoked.
	ErrKeyRevoked = errors.New("API key revoked")
	// ErrUserInactive indicates the credential's user is missing or deactivated.
	ErrUserInactive = errors.New("user inactive")
)

// resolutionErrors lists every failure Resolve can return.
var resolutionErrors = []error{
	ErrMissingCredential,
	ErrMalformedCredential,
	ErrInvalidSignature,
	ErrTokenExpired,
	ErrKeyNotFound,
	ErrKeyExpired,
	ErrKeyRevoked,
	ErrUserInactive,
}

// IsResolutionError reports whether err is a typed credential failure,
// as opposed to an infrastructure error (database down, etc.) that
// should surface as a 500 rather than a 401.
func IsResolutionError(err error) bool {
	for _, e := range resolutionErrors {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
