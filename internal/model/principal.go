package model

import "slices"

// CredentialSource discriminates how a principal was authenticated.
type CredentialSource string

// Credential sources.
const (
	SourceSession CredentialSource = "session"
	SourceAPIKey  CredentialSource = "api_key"
)

// Principal is the normalized authenticated identity produced by
// credential resolution, independent of which credential type was
// presented. Handlers consume only this type and never branch on the
// raw credential format.
type Principal struct {
	UserID  string
	Source  CredentialSource
	IsAdmin bool

	// API-key fields; zero for session principals.
	KeyID     string
	KeyPrefix string
	Scopes    []string
}

// HasScope reports whether the principal may exercise a scope.
// Session principals carry the user's full authority and pass every
// scope check; API-key principals are capped by the scopes recorded
// at key creation, with admin implying all.
func (p *Principal) HasScope(scope string) bool {
	if p.Source == SourceSession {
		return true
	}
	if slices.Contains(p.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(p.Scopes, scope)
}
