package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"mailgate_server/core/domain"
)

// RuleAdapter implements out.RuleRepository using PostgreSQL. Conditions
// and actions live in JSONB columns.
type RuleAdapter struct {
	db *sqlx.DB
}

// NewRuleAdapter creates a new RuleAdapter.
func NewRuleAdapter(db *sqlx.DB) *RuleAdapter {
	return &RuleAdapter{db: db}
}

type ruleRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	Name       string    `db:"name"`
	Conditions []byte    `db:"conditions"`
	Actions    []byte    `db:"actions"`
	Enabled    bool      `db:"enabled"`
	Priority   int       `db:"priority"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// ListEnabledAutomationRules loads automation rules ordered for
// deterministic first-match evaluation.
func (a *RuleAdapter) ListEnabledAutomationRules(ctx context.Context, userID string) ([]*domain.AutomationRule, error) {
	var rows []ruleRow
	query := `
		SELECT id, user_id, name, conditions, actions, enabled, priority, created_at, updated_at
		FROM automation_rules
		WHERE user_id = $1 AND enabled
		ORDER BY priority DESC, id ASC`

	if err := a.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list automation rules: %w", err)
	}

	rules := make([]*domain.AutomationRule, 0, len(rows))
	for _, row := range rows {
		rule := &domain.AutomationRule{
			ID:        row.ID,
			UserID:    row.UserID,
			Name:      row.Name,
			Enabled:   row.Enabled,
			Priority:  row.Priority,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		}
		if err := json.Unmarshal(row.Conditions, &rule.Conditions); err != nil {
			return nil, fmt.Errorf("decode conditions of rule %s: %w", row.ID, err)
		}
		if err := json.Unmarshal(row.Actions, &rule.Actions); err != nil {
			return nil, fmt.Errorf("decode actions of rule %s: %w", row.ID, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ListEnabledFilteringRules loads filtering rules in the same order.
func (a *RuleAdapter) ListEnabledFilteringRules(ctx context.Context, userID string) ([]*domain.FilteringRule, error) {
	var rows []ruleRow
	query := `
		SELECT id, user_id, name, conditions, actions, enabled, priority, created_at, updated_at
		FROM filtering_rules
		WHERE user_id = $1 AND enabled
		ORDER BY priority DESC, id ASC`

	if err := a.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list filtering rules: %w", err)
	}

	rules := make([]*domain.FilteringRule, 0, len(rows))
	for _, row := range rows {
		rule := &domain.FilteringRule{
			ID:        row.ID,
			UserID:    row.UserID,
			Name:      row.Name,
			Enabled:   row.Enabled,
			Priority:  row.Priority,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		}
		if err := json.Unmarshal(row.Conditions, &rule.Conditions); err != nil {
			return nil, fmt.Errorf("decode conditions of rule %s: %w", row.ID, err)
		}
		if err := json.Unmarshal(row.Actions, &rule.Actions); err != nil {
			return nil, fmt.Errorf("decode actions of rule %s: %w", row.ID, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
