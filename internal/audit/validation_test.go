package audit

import (
	"strings"
	"testing"
	"time"
)

func validPayload() AuthEventPayload {
	return AuthEventPayload{
		UserID:     "user-1",
		Source:     "session",
		Outcome:    "success",
		IP:         "203.0.113.5",
		Endpoint:   "GET /v1/auth/me",
		OccurredAt: time.Now().UnixMilli(),
	}
}

func TestValidateAuthEventPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*AuthEventPayload)
		wantErr bool
	}{
		{"valid success", func(_ *AuthEventPayload) {}, false},
		{"valid failure without user", func(p *AuthEventPayload) {
			p.Outcome = "failure"
			p.UserID = ""
		}, false},
		{"valid api_key source", func(p *AuthEventPayload) {
			p.Source = "api_key"
			p.KeyID = "key-1"
		}, false},
		{"unknown source", func(p *AuthEventPayload) { p.Source = "oauth" }, true},
		{"empty source", func(p *AuthEventPayload) { p.Source = "" }, true},
		{"unknown outcome", func(p *AuthEventPayload) { p.Outcome = "maybe" }, true},
		{"zero timestamp", func(p *AuthEventPayload) { p.OccurredAt = 0 }, true},
		{"negative timestamp", func(p *AuthEventPayload) { p.OccurredAt = -1 }, true},
		{"success without user", func(p *AuthEventPayload) { p.UserID = "" }, true},
		{"oversized endpoint", func(p *AuthEventPayload) {
			p.Endpoint = strings.Repeat("x", maxMetaLength+1)
		}, true},
		{"oversized ip", func(p *AuthEventPayload) {
			p.IP = strings.Repeat("x", maxMetaLength+1)
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			payload := validPayload()
			tt.mutate(&payload)
			err := ValidateAuthEventPayload(payload)
			if tt.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected valid payload, got: %v", err)
			}
		})
	}
}
