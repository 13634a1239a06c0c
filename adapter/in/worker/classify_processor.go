package worker

import (
	"context"
	"fmt"
	"time"

	"mailgate_server/core/domain"
	"mailgate_server/core/port/out"
	"mailgate_server/core/service/classify"
	"mailgate_server/core/service/rules"
	"mailgate_server/pkg/logger"
)

// ClassifyProcessor runs AI classification on emails no filtering rule
// claimed, then hands the result to the automation rules.
type ClassifyProcessor struct {
	emails     out.EmailRepository
	users      out.UserRepository
	classifier *classify.Classifier
	rules      *rules.Engine
	realtime   out.RealtimePort
	log        *logger.Logger
}

func NewClassifyProcessor(
	emails out.EmailRepository,
	users out.UserRepository,
	classifier *classify.Classifier,
	rulesEngine *rules.Engine,
	realtime out.RealtimePort,
) *ClassifyProcessor {
	return &ClassifyProcessor{
		emails:     emails,
		users:      users,
		classifier: classifier,
		rules:      rulesEngine,
		realtime:   realtime,
		log:        logger.Default().WithField("component", "classify_processor"),
	}
}

func (p *ClassifyProcessor) Process(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[ClassifyPayload](msg)
	if err != nil {
		return fmt.Errorf("parse classify payload: %w", err)
	}

	email, err := p.emails.GetByID(ctx, payload.EmailID)
	if err != nil {
		return fmt.Errorf("load email %s: %w", payload.EmailID, err)
	}
	if email == nil {
		p.log.Info("email %s not found, skipping classification", payload.EmailID)
		return nil
	}
	if email.Classified() {
		return nil
	}

	result, err := p.classifier.ClassifyEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("classify email %s: %w", email.ID, err)
	}

	processedAt := time.Now()
	update := &out.EmailUpdate{
		Category:    &result.Category,
		Priority:    &result.Priority,
		Summary:     &result.Summary,
		Entities:    result.Entities,
		ProcessedAt: &processedAt,
	}
	if err := p.emails.Update(ctx, email.ID, update); err != nil {
		return fmt.Errorf("persist classification for %s: %w", email.ID, err)
	}

	p.log.Info("classified email %s (AI): %s (priority %d)", email.ID, result.Category, result.Priority)

	p.realtime.Notify(ctx, payload.UserID, domain.EventEmailClassified, map[string]any{
		"emailId":  email.ID,
		"category": string(result.Category),
		"priority": result.Priority,
		"method":   "ai",
	})

	user, err := p.users.GetByID(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", payload.UserID, err)
	}
	if user == nil {
		return nil
	}

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
