package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"mailgate_server/core/domain"
)

// DraftAdapter implements out.DraftRepository using PostgreSQL.
type DraftAdapter struct {
	db *sqlx.DB
}

// NewDraftAdapter creates a new DraftAdapter.
func NewDraftAdapter(db *sqlx.DB) *DraftAdapter {
	return &DraftAdapter{db: db}
}

type draftRow struct {
	ID        string       `db:"id"`
	EmailID   string       `db:"email_id"`
	UserID    string       `db:"user_id"`
	Content   string       `db:"content"`
	Approved  bool         `db:"approved"`
	Sent      bool         `db:"sent"`
	SentAt    sql.NullTime `db:"sent_at"`
	CreatedAt time.Time    `db:"created_at"`
}

func (r *draftRow) toDomain() *domain.Draft {
	draft := &domain.Draft{
		ID:        r.ID,
		EmailID:   r.EmailID,
		UserID:    r.UserID,
		Content:   r.Content,
		Approved:  r.Approved,
		Sent:      r.Sent,
		CreatedAt: r.CreatedAt,
	}
	if r.SentAt.Valid {
		draft.SentAt = &r.SentAt.Time
	}
	return draft
}

// Insert stores a generated draft.
func (a *DraftAdapter) Insert(ctx context.Context, draft *domain.Draft) (*domain.Draft, error) {
	query := `
		INSERT INTO drafts (id, email_id, user_id, content, approved, sent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := a.db.ExecContext(ctx, query,
		draft.ID, draft.EmailID, draft.UserID, draft.Content, draft.Approved, draft.Sent, draft.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}
	return draft, nil
}

// GetByID loads one draft, returning (nil, nil) when it does not exist.
func (a *DraftAdapter) GetByID(ctx context.Context, id string) (*domain.Draft, error) {
	var row draftRow
	query := `
		SELECT id, email_id, user_id, content, approved, sent, sent_at, created_at
		FROM drafts WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get draft %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// MarkSent records a successful delivery.
func (a *DraftAdapter) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	query := `UPDATE drafts SET sent = TRUE, sent_at = $2 WHERE id = $1`

	if _, err := a.db.ExecContext(ctx, query, id, sentAt); err != nil {
		return fmt.Errorf("mark draft %s sent: %w", id, err)
	}
	return nil
}

// CountCreatedSince counts the user's drafts generated at or after the
// instant.
func (a *DraftAdapter) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM drafts WHERE user_id = $1 AND created_at >= $2`

	if err := a.db.GetContext(ctx, &count, query, userID, since); err != nil {
		return 0, fmt.Errorf("count drafts: %w", err)
	}
	return count, nil
}

// CountSentRepliesTo counts sent auto-replies addressed to one sender
// since the instant. The sender lives on the replied-to email.
func (a *DraftAdapter) CountSentRepliesTo(ctx context.Context, userID, sender string, since time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM drafts d
		JOIN emails e ON e.id = d.email_id
		WHERE d.user_id = $1 AND e.from_email = $2 AND d.sent AND d.sent_at >= $3`

	if err := a.db.GetContext(ctx, &count, query, userID, sender, since); err != nil {
		return 0, fmt.Errorf("count sent replies: %w", err)
	}
	return count, nil
}
