package worker

import (
	"context"
	"fmt"
	"time"

	"mailgate_server/core/domain"
	"mailgate_server/core/port/out"
	"mailgate_server/core/service/filtering"
	"mailgate_server/core/service/rules"
	"mailgate_server/core/service/usage"
	"mailgate_server/core/service/webhook"
	"mailgate_server/pkg/logger"
)

// FilterProcessor runs filtering rules against a fresh email. A match
// settles the classification for free; otherwise the email moves on to AI
// classification when the tier includes it.
type FilterProcessor struct {
	emails     out.EmailRepository
	users      out.UserRepository
	filtering  *filtering.Engine
	rules      *rules.Engine
	gate       *usage.Gate
	dispatcher *webhook.Dispatcher
	realtime   out.RealtimePort
	enqueuer   Enqueuer
	log        *logger.Logger
}

func NewFilterProcessor(
	emails out.EmailRepository,
	users out.UserRepository,
	filteringEngine *filtering.Engine,
	rulesEngine *rules.Engine,
	gate *usage.Gate,
	dispatcher *webhook.Dispatcher,
	realtime out.RealtimePort,
	enqueuer Enqueuer,
) *FilterProcessor {
	return &FilterProcessor{
		emails:     emails,
		users:      users,
		filtering:  filteringEngine,
		rules:      rulesEngine,
		gate:       gate,
		dispatcher: dispatcher,
		realtime:   realtime,
		enqueuer:   enqueuer,
		log:        logger.Default().WithField("component", "filter_processor"),
	}
}

func (p *FilterProcessor) Process(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[FilterPayload](msg)
	if err != nil {
		return fmt.Errorf("parse filter payload: %w", err)
	}

	email, err := p.emails.GetByID(ctx, payload.EmailID)
	if err != nil {
		return fmt.Errorf("load email %s: %w", payload.EmailID, err)
	}
	if email == nil {
		p.log.Info("email %s not found, skipping filtering", payload.EmailID)
		return nil
	}
	if email.Classified() {
		return nil
	}

	user, err := p.users.GetByID(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", payload.UserID, err)
	}
	if user == nil {
		p.log.Info("user %s not found, skipping filtering", payload.UserID)
		return nil
	}

	result, err := p.filtering.Apply(ctx, email)
	if err != nil {
		return fmt.Errorf("filtering: %w", err)
	}

	if !result.Matched {
		if !p.gate.CanUseAIClassification(user.Tier) {
			p.log.Info("email %s: tier %s has no AI classification, left uncategorized", email.ID, user.Tier)
			return nil
		}
		if _, err := p.enqueuer.PublishClassify(ctx, email.ID, user.ID); err != nil {
			return fmt.Errorf("queue classification: %w", err)
		}
		return nil
	}

	p.log.Info("email %s matched filtering rule %q", email.ID, result.RuleName)

	data := map[string]any{"emailId": email.ID, "method": "rule"}
	if result.Category != nil {
		data["category"] = string(*result.Category)
	}
	if result.Priority != nil {
		data["priority"] = *result.Priority
	}
	p.realtime.Notify(ctx, user.ID, domain.EventEmailClassified, data)

	if result.Actions != nil && result.Actions.Webhook != nil {
		p.dispatchWebhook(ctx, email, user, result)
	}

	// Automation rules see the email as filtering left it.
	updated, err := p.emails.GetByID(ctx, email.ID)
	if err != nil {
		return fmt.Errorf("reload email %s: %w", email.ID, err)
	}
	if updated != nil {
		if _, err := p.rules.Apply(ctx, updated, user.Tier); err != nil {
			return fmt.Errorf("automation rules: %w", err)
		}
	}

	return nil
}

// dispatchWebhook fires the rule's webhook in the background. Delivery
// failures never fail the job.
func (p *FilterProcessor) dispatchWebhook(ctx context.Context, email *domain.Email, user *domain.User, result *filtering.Result) {
	payload := &webhook.Payload{
		Event:     webhook.EventEmailFiltered,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Email: webhook.EmailInfo{
			ID:         email.ID,
			From:       email.From,
			To:         email.To,
			Subject:    email.Subject,
			Snippet:    email.Snippet,
			ReceivedAt: email.ReceivedAt.UTC().Format(time.RFC3339),
		},
	}
	if result.Category != nil {
		priority := domain.DefaultPriority(*result.Category)
		if result.Priority != nil {
			priority = *result.Priority
		}
		payload.Classification = &webhook.ClassificationInfo{
			Category: string(*result.Category),
			Priority: priority,
		}
	}
	if result.RuleID != "" {
		payload.Rule = &webhook.RuleInfo{ID: result.RuleID, Name: result.RuleName}
	}

	var secret string
	if user.WebhookSecret != nil {
		secret = *user.WebhookSecret
	}

	url := *result.Actions.Webhook
	go p.dispatcher.Dispatch(context.WithoutCancel(ctx), url, payload, secret)
}
