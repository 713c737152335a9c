package audit

import "fmt"

const maxMetaLength = 500

// ValidateAuthEventPayload validates auth event payload fields.
func ValidateAuthEventPayload(payload AuthEventPayload) error {
	if payload.Source != "session" && payload.Source != "api_key" {
		return fmt.Errorf("unknown source %q", payload.Source)
	}
	if payload.Outcome != "success" && payload.Outcome != "failure" {
		return fmt.Errorf("unknown outcome %q", payload.Outcome)
	}
	if payload.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	if payload.Outcome == "success" && payload.UserID == "" {
		return fmt.Errorf("user_id is required for success events")
	}
	if len(payload.Endpoint) > maxMetaLength {
		return fmt.Errorf("endpoint too long")
	}
	if len(payload.IP) > maxMetaLength {
		return fmt.Errorf("ip too long")
	}
	return nil
}
