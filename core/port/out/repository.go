// Package out defines outbound ports implemented by adapters.
package out

import (
	"context"
	"time"

	"mailgate_server/core/domain"
)

// EmailUpdate is a sparse patch applied to an email row. Nil fields are
// left untouched.
type EmailUpdate struct {
	Category    *domain.EmailCategory
	Priority    *int
	Summary     *string
	Entities    *domain.EmailEntities
	Archived    *bool
	Read        *bool
	ProcessedAt *time.Time
}

// EmailRepository persists normalized emails. Insert must no-op and return
// (nil, nil) when the provider message id already exists for the account.
type EmailRepository interface {
	Insert(ctx context.Context, email *domain.Email) (*domain.Email, error)
	GetByID(ctx context.Context, id string) (*domain.Email, error)
	Update(ctx context.Context, id string, update *EmailUpdate) error
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// RuleRepository loads the owner's rules. Implementations must order by
// priority DESC, id ASC so evaluation order is deterministic.
type RuleRepository interface {
	ListEnabledAutomationRules(ctx context.Context, userID string) ([]*domain.AutomationRule, error)
	ListEnabledFilteringRules(ctx context.Context, userID string) ([]*domain.FilteringRule, error)
}

// DraftRepository persists generated drafts and answers the safety guard's
// time-windowed queries.
type DraftRepository interface {
	Insert(ctx context.Context, draft *domain.Draft) (*domain.Draft, error)
	GetByID(ctx context.Context, id string) (*domain.Draft, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
	// CountSentRepliesTo counts sent auto-replies addressed to one sender
	// since the given instant.
	CountSentRepliesTo(ctx context.Context, userID, sender string, since time.Time) (int, error)
}

// AccountRepository reads and checkpoints connected mailbox accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*domain.MailAccount, error)
	UpdateHistoryID(ctx context.Context, id, historyID string) error
	CountActive(ctx context.Context, userID string) (int, error)
}

// UserRepository reads the pipeline-relevant user fields.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// APIKeyRepository counts keys for the usage gate.
type APIKeyRepository interface {
	CountActive(ctx context.Context, userID string) (int, error)
}
