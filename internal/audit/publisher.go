// Package audit captures authentication events and processes them
// off the request path.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/boardkit/boardkit/internal/metrics"
	"github.com/boardkit/boardkit/internal/model"
)

const (
	// StreamKey is the Redis stream for auth events.
	StreamKey = "stream:auth_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:auth_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// AuthEventPayload is the compressed event format for the Redis stream.
type AuthEventPayload struct {
	UserID     string `json:"uid,omitempty"`
	KeyID      string `json:"kid,omitempty"`
	Source     string `json:"src"`
	Outcome    string `json:"o"`
	IP         string `json:"ip,omitempty"`
	Endpoint   string `json:"ep,omitempty"`
	OccurredAt int64  `json:"t"` // Unix milliseconds
}

// Publisher enqueues auth events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewPublisher creates a new audit event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "audit.publisher"),
		metrics: recorder,
		now:     time.Now,
	}
}

// Publish adds an auth event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event AuthEventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()

	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned (fire-and-forget).
func (p *Publisher) PublishAsync(event AuthEventPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish auth event",
				"outcome", event.Outcome,
				"error", err,
			)
			p.metrics.IncAuditEventPublished("dropped")
			return
		}

		p.logger.Debug("auth event published",
			"outcome", event.Outcome,
			"stream_id", streamID,
		)
		p.metrics.IncAuditEventPublished("success")
	}()
}

// ReportSuccess publishes a successful authentication.
// Satisfies the auth middleware's reporter contract.
func (p *Publisher) ReportSuccess(_ context.Context, principal *model.Principal, ip, endpoint string) {
	p.PublishAsync(AuthEventPayload{
		UserID:     principal.UserID,
		KeyID:      principal.KeyID,
		Source:     string(principal.Source),
		Outcome:    model.AuthOutcomeSuccess,
		IP:         ip,
		Endpoint:   endpoint,
		OccurredAt: p.now().UnixMilli(),
	})
}

// ReportFailure publishes a failed authentication attempt.
func (p *Publisher) ReportFailure(_ context.Context, source, ip, endpoint string) {
	p.PublishAsync(AuthEventPayload{
		Source:     source,
		Outcome:    model.AuthOutcomeFailure,
		IP:         ip,
		Endpoint:   endpoint,
		OccurredAt: p.now().UnixMilli(),
	})
}
