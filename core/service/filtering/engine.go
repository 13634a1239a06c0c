// Package filtering evaluates the owner's filtering rules against a fresh
// email. Filtering is free on every tier and always runs before AI
// classification.
package filtering

import (
	"context"
	"fmt"
	"time"

	"mailgate_server/core/domain"
	"mailgate_server/core/port/out"
	"mailgate_server/core/service/match"
)

// Result describes the outcome of a filtering pass. Matched=false is not an
// error: it defers the email to AI classification.
type Result struct {
	Matched  bool
	Category *domain.EmailCategory
	Priority *int
	Actions  *domain.FilteringActions
	RuleID   string
	RuleName string
}

// Engine applies filtering rules and persists their side effects.
type Engine struct {
	rules  out.RuleRepository
	emails out.EmailRepository
	now    func() time.Time
}

// NewEngine creates a filtering engine.
func NewEngine(rules out.RuleRepository, emails out.EmailRepository) *Engine {
	return &Engine{rules: rules, emails: emails, now: time.Now}
}

// Apply tries the owner's enabled filtering rules in priority order and
// applies the first match's actions. The repository orders rules by
// priority DESC, id ASC, so evaluation is deterministic under priority
// ties.
func (e *Engine) Apply(ctx context.Context, email *domain.Email) (*Result, error) {
	rules, err := e.rules.ListEnabledFilteringRules(ctx, email.UserID)
	if err != nil {
		return nil, fmt.Errorf("list filtering rules: %w", err)
	}

	for _, rule := range rules {
		if !match.MatchesFiltering(email, &rule.Conditions) {
			continue
		}

		update := &out.EmailUpdate{}

		if rule.Actions.Classify != nil {
			update.Category = rule.Actions.Classify
			priority := domain.DefaultPriority(*rule.Actions.Classify)
			update.Priority = &priority
		}
		if rule.Actions.Archive {
			archived := true
			update.Archived = &archived
		}
		if rule.Actions.MarkRead {
			read := true
			update.Read = &read
		}

		processedAt := e.now()
		update.ProcessedAt = &processedAt

		if err := e.emails.Update(ctx, email.ID, update); err != nil {
			return nil, fmt.Errorf("apply filtering rule %s: %w", rule.ID, err)
		}

		return &Result{
			Matched:  true,
			Category: update.Category,
			Priority: update.Priority,
			Actions:  &rule.Actions,
			RuleID:   rule.ID,
			RuleName: rule.Name,
		}, nil
	}

	return &Result{Matched: false}, nil
}
