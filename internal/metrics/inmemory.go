package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	AuthSessionSuccesses uint64
	AuthAPIKeySuccesses  uint64
	AuthSessionFailures  uint64
	AuthAPIKeyFailures   uint64
	AuthDurationCount    uint64
	AuthDurationTotalNs  int64
	RateLimitAllowed     uint64
	RateLimitRejected    uint64
	RateLimitFallbacks   uint64
	CSRFRejected         uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	authSessionSuccesses uint64
	authAPIKeySuccesses  uint64
	authSessionFailures  uint64
	authAPIKeyFailures   uint64
	authDurationCount    uint64
	authDurationTotalNs  int64
	rateLimitAllowed     uint64
	rateLimitRejected    uint64
	rateLimitFallbacks   uint64
	csrfRejected         uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		AuthSessionSuccesses: atomic.LoadUint64(&m.authSessionSuccesses),
		AuthAPIKeySuccesses:  atomic.LoadUint64(&m.authAPIKeySuccesses),
		AuthSessionFailures:  atomic.LoadUint64(&m.authSessionFailures),
		AuthAPIKeyFailures:   atomic.LoadUint64(&m.authAPIKeyFailures),
		AuthDurationCount:    atomic.LoadUint64(&m.authDurationCount),
		AuthDurationTotalNs:  atomic.LoadInt64(&m.authDurationTotalNs),
		RateLimitAllowed:     atomic.LoadUint64(&m.rateLimitAllowed),
		RateLimitRejected:    atomic.LoadUint64(&m.rateLimitRejected),
		RateLimitFallbacks:   atomic.LoadUint64(&m.rateLimitFallbacks),
		CSRFRejected:         atomic.LoadUint64(&m.csrfRejected),
	}
}

// IncAuthSuccess increments the success counter for the credential source.
func (m *InMemoryRecorder) IncAuthSuccess(source string) {
	if source == "api_key" {
		atomic.AddUint64(&m.authAPIKeySuccesses, 1)
		return
	}
	atomic.AddUint64(&m.authSessionSuccesses, 1)
}

// IncAuthFailure increments the failure counter for the credential source.
func (m *InMemoryRecorder) IncAuthFailure(source string) {
	if source == "api_key" {
		atomic.AddUint64(&m.authAPIKeyFailures, 1)
		return
	}
	atomic.AddUint64(&m.authSessionFailures, 1)
}

// ObserveAuthDuration records credential resolution duration.
func (m *InMemoryRecorder) ObserveAuthDuration(duration time.Duration) {
	atomic.AddUint64(&m.authDurationCount, 1)
	atomic.AddInt64(&m.authDurationTotalNs, duration.Nanoseconds())
}

// IncRateLimitAllowed increments the allowed-request counter.
func (m *InMemoryRecorder) IncRateLimitAllowed() {
	atomic.AddUint64(&m.rateLimitAllowed, 1)
}

// IncRateLimitRejected increments the rejected-request counter.
func (m *InMemoryRecorder) IncRateLimitRejected() {
	atomic.AddUint64(&m.rateLimitRejected, 1)
}

// IncRateLimitFallback increments the fallback-check counter.
func (m *InMemoryRecorder) IncRateLimitFallback() {
	atomic.AddUint64(&m.rateLimitFallbacks, 1)
}

// IncCSRFRejected increments the CSRF rejection counter.
func (m *InMemoryRecorder) IncCSRFRejected() {
	atomic.AddUint64(&m.csrfRejected, 1)
}

// IncAuditEventPublished is tracked only by external recorders.
func (m *InMemoryRecorder) IncAuditEventPublished(status string) {}

// IncAuditEventProcessed is tracked only by external recorders.
func (m *InMemoryRecorder) IncAuditEventProcessed(status string) {}

// ObserveAuditBatchSize is tracked only by external recorders.
func (m *InMemoryRecorder) ObserveAuditBatchSize(size int) {}

// ObserveAuditBatchDuration is tracked only by external recorders.
func (m *InMemoryRecorder) ObserveAuditBatchDuration(duration time.Duration) {}

// SetAuditQueueDepth is tracked only by external recorders.
func (m *InMemoryRecorder) SetAuditQueueDepth(depth int64) {}
