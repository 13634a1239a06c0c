package domain

import "time"

// MailAccount is a connected mailbox. HistoryID is the provider sync
// checkpoint; empty means the account has never been synced.
type MailAccount struct {
	ID           string
	UserID       string
	Email        string
	RefreshToken string
	HistoryID    string
	Active       bool
	CreatedAt    time.Time
}

// User carries the pipeline-relevant slice of a user row.
type User struct {
	ID            string
	Email         string
	Tier          string
	WebhookSecret *string
}

// Draft is a generated reply awaiting approval or already sent.
type Draft struct {
	ID        string
	EmailID   string
	UserID    string
	Content   string
	Approved  bool
	Sent      bool
	SentAt    *time.Time
	CreatedAt time.Time
}
