// Package domain contains the core entities of the mailgate pipeline.
package domain

import "time"

// EmailCategory is the fixed classification vocabulary.
type EmailCategory string

const (
	CategoryActionRequired EmailCategory = "action-required"
	CategoryFYI            EmailCategory = "fyi"
	CategoryMeeting        EmailCategory = "meeting"
	CategoryNewsletter     EmailCategory = "newsletter"
	CategorySpam           EmailCategory = "spam"
	CategoryAutomated      EmailCategory = "automated"
)

// categoryPriorities maps a category to its default priority. Used when a
// rule classifies an email without carrying an explicit priority.
var categoryPriorities = map[EmailCategory]int{
	CategoryActionRequired: 8,
	CategoryMeeting:        7,
	CategoryFYI:            5,
	CategoryAutomated:      3,
	CategoryNewsletter:     2,
	CategorySpam:           1,
}

// DefaultPriority returns the default priority for a category. Unknown
// categories fall back to 5.
func DefaultPriority(category EmailCategory) int {
	if p, ok := categoryPriorities[category]; ok {
		return p
	}
	return 5
}

// EmailEntities holds structured data extracted during classification.
type EmailEntities struct {
	People    []string `json:"people,omitempty"`
	Companies []string `json:"companies,omitempty"`
	Dates     []string `json:"dates,omitempty"`
	Amounts   []string `json:"amounts,omitempty"`
}

// Email is a normalized message record. From/To/Subject/Body/Snippet are
// written once at ingestion; Category/Priority/Summary/Entities are written
// once per pipeline pass by the filter or classify stage. An email that
// already carries a category is never reprocessed.
type Email struct {
	ID         string
	AccountID  string
	UserID     string
	ExternalID string // provider message id, ingestion idempotency key
	ThreadID   string

	From    string
	To      string
	Subject string
	Body    string
	Snippet string

	Category *EmailCategory
	Priority *int // 0-10
	Summary  *string
	Entities *EmailEntities

	Archived bool
	Read     bool

	ReceivedAt  time.Time
	ProcessedAt *time.Time
	CreatedAt   time.Time
}

// Classified reports whether the email already went through the filter or
// classify stage.
func (e *Email) Classified() bool {
	return e.Category != nil
}

// ClassificationResult is the contract expected from the completion service.
type ClassificationResult struct {
	Category EmailCategory  `json:"category"`
	Priority int            `json:"priority"`
	Summary  string         `json:"summary"`
	Entities *EmailEntities `json:"entities,omitempty"`
}
