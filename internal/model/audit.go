package model

import "time"

// Auth event outcomes.
const (
	AuthOutcomeSuccess = "success"
	AuthOutcomeFailure = "failure"
)

// AuthEvent records an authentication attempt for the audit trail.
// Events are published to a stream and persisted in batches.
type AuthEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	KeyID      string    `json:"key_id,omitempty"`
	Source     string    `json:"source"`
	Outcome    string    `json:"outcome"`
	IP         string    `json:"ip,omitempty"`
	Endpoint   string    `json:"endpoint,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
