package worker

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of a job.
type JobType = string

// Job types, one per pipeline stage.
const (
	JobMailIngest    JobType = "mail.ingest"
	JobMailFilter            = "mail.filter"
	JobAIClassify            = "ai.classify"
	JobDraftGenerate         = "draft.generate"
)

// Message is one job as it moves through a stage pool. Stream and EntryID
// tie the job back to its queue entry so it can be acknowledged once
// settled; both are empty for jobs that did not come off a stream.
type Message struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	Retries   int            `json:"retries"`

	Stream  string `json:"-"`
	EntryID string `json:"-"`
}

// NewMessage creates a message with a fresh id.
func NewMessage(jobType string, payload map[string]any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// IngestPayload identifies the account to sync.
type IngestPayload struct {
	AccountID string `json:"account_id"`
	UserID    string `json:"user_id"`
}

// FilterPayload identifies the email to run filtering rules against.
type FilterPayload struct {
	EmailID string `json:"email_id"`
	UserID  string `json:"user_id"`
}

// ClassifyPayload identifies the email to classify with AI.
type ClassifyPayload struct {
	EmailID string `json:"email_id"`
	UserID  string `json:"user_id"`
}

// DraftPayload identifies the email to draft a reply for. AutoSend sends
// the draft on the original thread once generated.
type DraftPayload struct {
	EmailID  string  `json:"email_id"`
	UserID   string  `json:"user_id"`
	AutoSend bool    `json:"auto_send"`
	Template *string `json:"template,omitempty"`
}
