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

// AccountAdapter implements out.AccountRepository using PostgreSQL.
type AccountAdapter struct {
	db *sqlx.DB
}

// NewAccountAdapter creates a new AccountAdapter.
func NewAccountAdapter(db *sqlx.DB) *AccountAdapter {
	return &AccountAdapter{db: db}
}

type accountRow struct {
	ID           string         `db:"id"`
	UserID       string         `db:"user_id"`
	Email        string         `db:"email"`
	RefreshToken string         `db:"refresh_token"`
	HistoryID    sql.NullString `db:"history_id"`
	Active       bool           `db:"active"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (r *accountRow) toDomain() *domain.MailAccount {
	account := &domain.MailAccount{
		ID:           r.ID,
		UserID:       r.UserID,
		Email:        r.Email,
		RefreshToken: r.RefreshToken,
		Active:       r.Active,
		CreatedAt:    r.CreatedAt,
	}
	if r.HistoryID.Valid {
		account.HistoryID = r.HistoryID.String
	}
	return account
}

// GetByID loads one account, returning (nil, nil) when it does not exist.
func (a *AccountAdapter) GetByID(ctx context.Context, id string) (*domain.MailAccount, error) {
	var row accountRow
	query := `
		SELECT id, user_id, email, refresh_token, history_id, active, created_at
		FROM mail_accounts WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// UpdateHistoryID persists the provider sync checkpoint.
func (a *AccountAdapter) UpdateHistoryID(ctx context.Context, id, historyID string) error {
	query := `UPDATE mail_accounts SET history_id = $2 WHERE id = $1`

	if _, err := a.db.ExecContext(ctx, query, id, historyID); err != nil {
		return fmt.Errorf("update history id of account %s: %w", id, err)
	}
	return nil
}

// CountActive counts the user's active accounts.
func (a *AccountAdapter) CountActive(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM mail_accounts WHERE user_id = $1 AND active`

	if err := a.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return count, nil
}
