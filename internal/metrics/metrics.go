// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Authentication metrics
	IncAuthSuccess(source string) // source: "session" or "api_key"
	IncAuthFailure(source string)
	ObserveAuthDuration(duration time.Duration)

	// Rate limiting metrics
	IncRateLimitAllowed()
	IncRateLimitRejected()
	IncRateLimitFallback()

	// CSRF metrics
	IncCSRFRejected()

	// Audit pipeline metrics
	IncAuditEventPublished(status string) // status: "success" or "dropped"
	IncAuditEventProcessed(status string) // status: "success", "failed", "skipped"
	ObserveAuditBatchSize(size int)
	ObserveAuditBatchDuration(duration time.Duration)
	SetAuditQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
