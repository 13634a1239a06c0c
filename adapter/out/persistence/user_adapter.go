package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"mailgate_server/core/domain"
)

// UserAdapter implements out.UserRepository using PostgreSQL.
type UserAdapter struct {
	db *sqlx.DB
}

// NewUserAdapter creates a new UserAdapter.
func NewUserAdapter(db *sqlx.DB) *UserAdapter {
	return &UserAdapter{db: db}
}

type userRow struct {
	ID            string         `db:"id"`
	Email         string         `db:"email"`
	Tier          sql.NullString `db:"tier"`
	WebhookSecret sql.NullString `db:"webhook_secret"`
}

func (r *userRow) toDomain() *domain.User {
	user := &domain.User{
		ID:    r.ID,
		Email: r.Email,
	}
	if r.Tier.Valid {
		user.Tier = r.Tier.String
	}
	if r.WebhookSecret.Valid {
		user.WebhookSecret = &r.WebhookSecret.String
	}
	return user
}

// GetByID loads the pipeline-relevant user fields, returning (nil, nil)
// when the user does not exist.
func (a *UserAdapter) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var row userRow
	query := `SELECT id, email, tier, webhook_secret FROM users WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// APIKeyAdapter implements out.APIKeyRepository using PostgreSQL.
type APIKeyAdapter struct {
	db *sqlx.DB
}

// NewAPIKeyAdapter creates a new APIKeyAdapter.
func NewAPIKeyAdapter(db *sqlx.DB) *APIKeyAdapter {
	return &APIKeyAdapter{db: db}
}

// CountActive counts the user's active API keys.
func (a *APIKeyAdapter) CountActive(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM api_keys WHERE user_id = $1 AND active`

	if err := a.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count api keys: %w", err)
	}
	return count, nil
}
