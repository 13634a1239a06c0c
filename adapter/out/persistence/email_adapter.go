// Package persistence provides PostgreSQL adapters implementing outbound
// ports.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"mailgate_server/core/domain"
	"mailgate_server/core/port/out"
)

// EmailAdapter implements out.EmailRepository using PostgreSQL.
type EmailAdapter struct {
	db *sqlx.DB
}

// NewEmailAdapter creates a new EmailAdapter.
func NewEmailAdapter(db *sqlx.DB) *EmailAdapter {
	return &EmailAdapter{db: db}
}

const emailSelectColumns = `
	id, account_id, user_id, external_id, thread_id,
	from_email, to_email, subject, body, snippet,
	category, priority, summary, entities,
	archived, read, received_at, processed_at, created_at`

// emailRow represents the database row for emails.
type emailRow struct {
	ID         string `db:"id"`
	AccountID  string `db:"account_id"`
	UserID     string `db:"user_id"`
	ExternalID string `db:"external_id"`
	ThreadID   string `db:"thread_id"`

	FromEmail string `db:"from_email"`
	ToEmail   string `db:"to_email"`
	Subject   string `db:"subject"`
	Body      string `db:"body"`
	Snippet   string `db:"snippet"`

	Category sql.NullString `db:"category"`
	Priority sql.NullInt64  `db:"priority"`
	Summary  sql.NullString `db:"summary"`
	Entities []byte         `db:"entities"`

	Archived bool `db:"archived"`
	Read     bool `db:"read"`

	ReceivedAt  time.Time    `db:"received_at"`
	ProcessedAt sql.NullTime `db:"processed_at"`
	CreatedAt   time.Time    `db:"created_at"`
}

func (r *emailRow) toDomain() (*domain.Email, error) {
	email := &domain.Email{
		ID:         r.ID,
		AccountID:  r.AccountID,
		UserID:     r.UserID,
		ExternalID: r.ExternalID,
		ThreadID:   r.ThreadID,
		From:       r.FromEmail,
		To:         r.ToEmail,
		Subject:    r.Subject,
		Body:       r.Body,
		Snippet:    r.Snippet,
		Archived:   r.Archived,
		Read:       r.Read,
		ReceivedAt: r.ReceivedAt,
		CreatedAt:  r.CreatedAt,
	}

	if r.Category.Valid {
		category := domain.EmailCategory(r.Category.String)
		email.Category = &category
	}
	if r.Priority.Valid {
		priority := int(r.Priority.Int64)
		email.Priority = &priority
	}
	if r.Summary.Valid {
		email.Summary = &r.Summary.String
	}
	if len(r.Entities) > 0 {
		var entities domain.EmailEntities
		if err := json.Unmarshal(r.Entities, &entities); err != nil {
			return nil, fmt.Errorf("decode entities: %w", err)
		}
		email.Entities = &entities
	}
	if r.ProcessedAt.Valid {
		email.ProcessedAt = &r.ProcessedAt.Time
	}

	return email, nil
}

// Insert stores the email, returning (nil, nil) when the provider message
// id was already ingested for the account.
func (a *EmailAdapter) Insert(ctx context.Context, email *domain.Email) (*domain.Email, error) {
	query := `
		INSERT INTO emails (
			id, account_id, user_id, external_id, thread_id,
			from_email, to_email, subject, body, snippet,
			archived, read, received_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (account_id, external_id) DO NOTHING`

	result, err := a.db.ExecContext(ctx, query,
		email.ID, email.AccountID, email.UserID, email.ExternalID, email.ThreadID,
		email.From, email.To, email.Subject, email.Body, email.Snippet,
		email.Archived, email.Read, email.ReceivedAt, email.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert email: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert email rows: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}
	return email, nil
}

// GetByID loads one email, returning (nil, nil) when it does not exist.
func (a *EmailAdapter) GetByID(ctx context.Context, id string) (*domain.Email, error) {
	var row emailRow
	query := `SELECT` + emailSelectColumns + ` FROM emails WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get email %s: %w", id, err)
	}
	return row.toDomain()
}

// Update applies the sparse patch. A nil field leaves the column as is.
func (a *EmailAdapter) Update(ctx context.Context, id string, update *out.EmailUpdate) error {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 8)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Category != nil {
		add("category", string(*update.Category))
	}
	if update.Priority != nil {
		add("priority", *update.Priority)
	}
	if update.Summary != nil {
		add("summary", *update.Summary)
	}
	if update.Entities != nil {
		data, err := json.Marshal(update.Entities)
		if err != nil {
			return fmt.Errorf("encode entities: %w", err)
		}
		add("entities", data)
	}
	if update.Archived != nil {
		add("archived", *update.Archived)
	}
	if update.Read != nil {
		add("read", *update.Read)
	}
	if update.ProcessedAt != nil {
		add("processed_at", *update.ProcessedAt)
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE emails SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update email %s: %w", id, err)
	}
	return nil
}

// CountCreatedSince counts the user's emails ingested at or after the
// instant.
func (a *EmailAdapter) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM emails WHERE user_id = $1 AND created_at >= $2`

	if err := a.db.GetContext(ctx, &count, query, userID, since); err != nil {
		return 0, fmt.Errorf("count emails: %w", err)
	}
	return count, nil
}
