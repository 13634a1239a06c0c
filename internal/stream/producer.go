package stream

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is the wire envelope of a queued stage job.
type Job struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// Producer publishes stage jobs. Processors use it to hand an email to the
// next stage.
type Producer struct {
	stream *RedisStream
}

// NewProducer creates a producer over the stream client.
func NewProducer(stream *RedisStream) *Producer {
	return &Producer{stream: stream}
}

// PublishIngest queues a mailbox sync for one account.
func (p *Producer) PublishIngest(ctx context.Context, accountID, userID string) (string, error) {
	job := &Job{
		ID:   uuid.New().String(),
		Type: "mail.ingest",
		Payload: map[string]any{
			"account_id": accountID,
			"user_id":    userID,
		},
		CreatedAt: time.Now(),
	}
	return p.stream.Publish(ctx, StreamIngest, job)
}

// PublishFilter queues the filtering stage for one stored email.
func (p *Producer) PublishFilter(ctx context.Context, emailID, userID string) (string, error) {
	job := &Job{
		ID:   uuid.New().String(),
		Type: "mail.filter",
		Payload: map[string]any{
			"email_id": emailID,
			"user_id":  userID,
		},
		CreatedAt: time.Now(),
	}
	return p.stream.Publish(ctx, StreamFilter, job)
}

// PublishClassify queues AI classification for one stored email.
func (p *Producer) PublishClassify(ctx context.Context, emailID, userID string) (string, error) {
	job := &Job{
		ID:   uuid.New().String(),
		Type: "ai.classify",
		Payload: map[string]any{
			"email_id": emailID,
			"user_id":  userID,
		},
		CreatedAt: time.Now(),
	}
	return p.stream.Publish(ctx, StreamClassify, job)
}

// PublishDraft queues reply-draft generation for one stored email.
func (p *Producer) PublishDraft(ctx context.Context, emailID, userID string, autoSend bool, template *string) (string, error) {
	payload := map[string]any{
		"email_id":  emailID,
		"user_id":   userID,
		"auto_send": autoSend,
	}
	if template != nil {
		payload["template"] = *template
	}
	job := &Job{
		ID:        uuid.New().String(),
		Type:      "draft.generate",
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	return p.stream.Publish(ctx, StreamDraft, job)
}

// EnqueueDraft is PublishDraft without the entry id, for callers that only
// need the side effect.
func (p *Producer) EnqueueDraft(ctx context.Context, emailID, userID string, autoSend bool, template *string) error {
	_, err := p.PublishDraft(ctx, emailID, userID, autoSend, template)
	return err
}
