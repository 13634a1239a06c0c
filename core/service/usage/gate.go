// Package usage gates operations against subscription tier limits.
//
// Every check is read-then-compare without transactional isolation: under a
// concurrent burst a limit can be exceeded by a small margin. The limits are
// soft and the overrun cost is one unit, so this is accepted rather than
// paying for an atomic counter.
package usage

import (
	"context"
	"fmt"
	"time"

	"mailgate_server/core/domain"
	"mailgate_server/core/port/out"
)

// Decision is a structured authorization result. Callers log Reason instead
// of handling an error.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// Gate authorizes tier-bounded operations from derived usage counters.
type Gate struct {
	emails   out.EmailRepository
	drafts   out.DraftRepository
	accounts out.AccountRepository
	apiKeys  out.APIKeyRepository
	now      func() time.Time
}

// NewGate creates a usage gate over the counting repositories.
func NewGate(emails out.EmailRepository, drafts out.DraftRepository, accounts out.AccountRepository, apiKeys out.APIKeyRepository) *Gate {
	return &Gate{
		emails:   emails,
		drafts:   drafts,
		accounts: accounts,
		apiKeys:  apiKeys,
		now:      time.Now,
	}
}

// CanAddAccount authorizes connecting another mailbox.
func (g *Gate) CanAddAccount(ctx context.Context, userID, tier string) (Decision, error) {
	limits := domain.GetTierLimits(tier)
	count, err := g.accounts.CountActive(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("count accounts: %w", err)
	}
	if count >= limits.MaxAccounts {
		return deny("account limit reached (%d/%d)", count, limits.MaxAccounts), nil
	}
	return allow(), nil
}

// CanProcessEmail authorizes ingesting one more email this month.
func (g *Gate) CanProcessEmail(ctx context.Context, userID, tier string) (Decision, error) {
	limits := domain.GetTierLimits(tier)
	count, err := g.emails.CountCreatedSince(ctx, userID, g.startOfMonth())
	if err != nil {
		return Decision{}, fmt.Errorf("count emails: %w", err)
	}
	if count >= limits.EmailsPerMonth {
		return deny("monthly email limit reached (%d/%d)", count, limits.EmailsPerMonth), nil
	}
	return allow(), nil
}

// CanGenerateDraft authorizes generating one more draft this month.
func (g *Gate) CanGenerateDraft(ctx context.Context, userID, tier string) (Decision, error) {
	limits := domain.GetTierLimits(tier)
	count, err := g.drafts.CountCreatedSince(ctx, userID, g.startOfMonth())
	if err != nil {
		return Decision{}, fmt.Errorf("count drafts: %w", err)
	}
	if count >= limits.DraftsPerMonth {
		return deny("monthly draft limit reached (%d/%d)", count, limits.DraftsPerMonth), nil
	}
	return allow(), nil
}

// CanCreateAPIKey authorizes creating another API key.
func (g *Gate) CanCreateAPIKey(ctx context.Context, userID, tier string) (Decision, error) {
	limits := domain.GetTierLimits(tier)
	count, err := g.apiKeys.CountActive(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("count api keys: %w", err)
	}
	if count >= limits.MaxAPIKeys {
		return deny("api key limit reached (%d/%d)", count, limits.MaxAPIKeys), nil
	}
	return allow(), nil
}

// CanUseAIClassification reports whether the tier includes AI
// classification at all. No counter involved.
func (g *Gate) CanUseAIClassification(tier string) bool {
	return domain.GetTierLimits(tier).AIClassification
}

// CanAutoReply reports whether the tier includes automated replies. The
// per-sender safety checks live in the safety guard, not here.
func (g *Gate) CanAutoReply(tier string) bool {
	return domain.GetTierLimits(tier).AutoReply
}

func (g *Gate) startOfMonth() time.Time {
	now := g.now()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}
