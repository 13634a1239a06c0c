// Package rules runs the owner's automation rules once an email carries a
// category, either from a filtering rule or from AI classification.
package rules

import (
	"context"
	"fmt"

	"mailgate_server/core/domain"
	"mailgate_server/core/port/out"
	"mailgate_server/core/service/match"
	"mailgate_server/core/service/safety"
	"mailgate_server/core/service/usage"
	"mailgate_server/pkg/logger"
)

// DraftEnqueuer hands a reply-draft job to the queue. The engine never
// generates drafts inline.
type DraftEnqueuer interface {
	EnqueueDraft(ctx context.Context, emailID, userID string, autoSend bool, template *string) error
}

// ReplyGate is the subscription-tier side of auto-reply authorization.
type ReplyGate interface {
	CanAutoReply(tier string) bool
	CanGenerateDraft(ctx context.Context, userID, tier string) (usage.Decision, error)
}

// SafetyChecker is the per-sender side of auto-reply authorization.
type SafetyChecker interface {
	CanAutoReply(ctx context.Context, userID, sender string, cfg *safety.Config) (safety.Decision, error)
}

// Result reports which automation rule fired, if any.
type Result struct {
	Matched         bool
	RuleID          string
	RuleName        string
	AutoReplyQueued bool
}

// Engine evaluates automation rules in priority order and executes the
// first match's actions.
type Engine struct {
	rules    out.RuleRepository
	emails   out.EmailRepository
	gate     ReplyGate
	guard    SafetyChecker
	drafts   DraftEnqueuer
	realtime out.RealtimePort
	log      *logger.Logger
}

// NewEngine creates an automation rules engine.
func NewEngine(rules out.RuleRepository, emails out.EmailRepository, gate ReplyGate, guard SafetyChecker, drafts DraftEnqueuer, realtime out.RealtimePort) *Engine {
	return &Engine{
		rules:    rules,
		emails:   emails,
		gate:     gate,
		guard:    guard,
		drafts:   drafts,
		realtime: realtime,
		log:      logger.Default().WithField("component", "rules_engine"),
	}
}

// Apply runs the owner's enabled automation rules against the email. The
// repository orders rules by priority DESC, id ASC; the first match wins
// and later rules never run.
func (e *Engine) Apply(ctx context.Context, email *domain.Email, tier string) (*Result, error) {
	rules, err := e.rules.ListEnabledAutomationRules(ctx, email.UserID)
	if err != nil {
		return nil, fmt.Errorf("list automation rules: %w", err)
	}

	for _, rule := range rules {
		if !match.Matches(email, &rule.Conditions) {
			continue
		}

		result := &Result{Matched: true, RuleID: rule.ID, RuleName: rule.Name}
		if err := e.execute(ctx, email, rule, tier, result); err != nil {
			return nil, fmt.Errorf("execute rule %s: %w", rule.ID, err)
		}
		return result, nil
	}

	return &Result{Matched: false}, nil
}

func (e *Engine) execute(ctx context.Context, email *domain.Email, rule *domain.AutomationRule, tier string, result *Result) error {
	update := &out.EmailUpdate{}
	dirty := false

	if rule.Actions.Classify != nil {
		update.Category = rule.Actions.Classify
		dirty = true
	}
	if rule.Actions.Archive {
		archived := true
		update.Archived = &archived
		dirty = true
	}
	if rule.Actions.MarkRead {
		read := true
		update.Read = &read
		dirty = true
	}

	if dirty {
		if err := e.emails.Update(ctx, email.ID, update); err != nil {
			return fmt.Errorf("update email: %w", err)
		}
	}

	if rule.Actions.AutoReply {
		queued, err := e.autoReply(ctx, email, rule, tier)
		if err != nil {
			return err
		}
		result.AutoReplyQueued = queued
	}

	if rule.Actions.ForwardToAgent {
		e.realtime.Notify(ctx, email.UserID, domain.EventForwardToAgent, map[string]any{
			"emailId": email.ID,
			"ruleId":  rule.ID,
		})
	}

	return nil
}

// autoReply walks the authorization chain: tier flag, per-sender safety,
// monthly draft quota. Any denial is logged and ends the action without
// failing the rule.
func (e *Engine) autoReply(ctx context.Context, email *domain.Email, rule *domain.AutomationRule, tier string) (bool, error) {
	if !e.gate.CanAutoReply(tier) {
		e.log.Info("auto-reply skipped for email %s: tier %s does not include automated replies", email.ID, tier)
		return false, nil
	}

	decision, err := e.guard.CanAutoReply(ctx, email.UserID, email.From, nil)
	if err != nil {
		return false, fmt.Errorf("safety check: %w", err)
	}
	if !decision.Allowed {
		e.log.Info("auto-reply blocked for email %s: %s", email.ID, decision.Reason)
		return false, nil
	}

	quota, err := e.gate.CanGenerateDraft(ctx, email.UserID, tier)
	if err != nil {
		return false, fmt.Errorf("draft quota check: %w", err)
	}
	if !quota.Allowed {
		e.log.Info("auto-reply skipped for email %s: %s", email.ID, quota.Reason)
		return false, nil
	}

	if err := e.drafts.EnqueueDraft(ctx, email.ID, email.UserID, true, rule.Actions.ReplyTemplate); err != nil {
		return false, fmt.Errorf("enqueue draft: %w", err)
	}

	data := map[string]any{"emailId": email.ID}
	if rule.Actions.ReplyTemplate != nil {
		data["template"] = *rule.Actions.ReplyTemplate
	}
	e.realtime.Notify(ctx, email.UserID, domain.EventAutoReplyTrigger, data)

	return true, nil
}

var _ ReplyGate = (*usage.Gate)(nil)

var _ SafetyChecker = (*safety.Guard)(nil)
