package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncAuthSuccess is a no-op.
func (n *NoopRecorder) IncAuthSuccess(source string) {}

// IncAuthFailure is a no-op.
func (n *NoopRecorder) IncAuthFailure(source string) {}

// ObserveAuthDuration is a no-op.
func (n *NoopRecorder) ObserveAuthDuration(duration time.Duration) {}

// IncRateLimitAllowed is a no-op.
func (n *NoopRecorder) IncRateLimitAllowed() {}

// IncRateLimitRejected is a no-op.
func (n *NoopRecorder) IncRateLimitRejected() {}

// IncRateLimitFallback is a no-op.
func (n *NoopRecorder) IncRateLimitFallback() {}

// IncCSRFRejected is a no-op.
func (n *NoopRecorder) IncCSRFRejected() {}

// IncAuditEventPublished is a no-op.
func (n *NoopRecorder) IncAuditEventPublished(status string) {}

// IncAuditEventProcessed is a no-op.
func (n *NoopRecorder) IncAuditEventProcessed(status string) {}

// ObserveAuditBatchSize is a no-op.
func (n *NoopRecorder) ObserveAuditBatchSize(size int) {}

// ObserveAuditBatchDuration is a no-op.
func (n *NoopRecorder) ObserveAuditBatchDuration(duration time.Duration) {}

// SetAuditQueueDepth is a no-op.
func (n *NoopRecorder) SetAuditQueueDepth(depth int64) {}
