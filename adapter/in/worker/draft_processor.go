package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mailgate_server/core/domain"
	"mailgate_server/core/port/out"
	draftsvc "mailgate_server/core/service/draft"
	"mailgate_server/core/service/usage"
	"mailgate_server/pkg/logger"
)

// previewChars bounds the draft preview pushed over realtime.
const previewChars = 200

// DraftProcessor generates a reply draft for one email, optionally sending
// it on the original thread.
type DraftProcessor struct {
	emails    out.EmailRepository
	drafts    out.DraftRepository
	accounts  out.AccountRepository
	users     out.UserRepository
	generator *draftsvc.Generator
	provider  out.MailProvider
	gate      *usage.Gate
	realtime  out.RealtimePort
	log       *logger.Logger
}

func NewDraftProcessor(
	emails out.EmailRepository,
	drafts out.DraftRepository,
	accounts out.AccountRepository,
	users out.UserRepository,
	generator *draftsvc.Generator,
	provider out.MailProvider,
	gate *usage.Gate,
	realtime out.RealtimePort,
) *DraftProcessor {
	return &DraftProcessor{
		emails:    emails,
		drafts:    drafts,
		accounts:  accounts,
		users:     users,
		generator: generator,
		provider:  provider,
		gate:      gate,
		realtime:  realtime,
		log:       logger.Default().WithField("component", "draft_processor"),
	}
}

func (p *DraftProcessor) Process(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[DraftPayload](msg)
	if err != nil {
		return fmt.Errorf("parse draft payload: %w", err)
	}

	email, err := p.emails.GetByID(ctx, payload.EmailID)
	if err != nil {
		return fmt.Errorf("load email %s: %w", payload.EmailID, err)
	}
	if email == nil {
		p.log.Info("email %s not found, skipping draft", payload.EmailID)
		return nil
	}

	user, err := p.users.GetByID(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", payload.UserID, err)
	}
	if user == nil {
		p.log.Info("user %s not found, skipping draft", payload.UserID)
		return nil
	}

	// The quota was checked at enqueue time, but jobs can sit in the queue
	// across a limit change.
	decision, err := p.gate.CanGenerateDraft(ctx, user.ID, user.Tier)
	if err != nil {
		return fmt.Errorf("draft quota check: %w", err)
	}
	if !decision.Allowed {
		p.log.Warn("draft for email %s skipped: %s", email.ID, decision.Reason)
		return nil
	}

	content, err := p.generator.GenerateReply(ctx, email, payload.Template)
	if err != nil {
		return fmt.Errorf("generate reply for %s: %w", email.ID, err)
	}

	draft := &domain.Draft{
		ID:        uuid.New().String(),
		EmailID:   email.ID,
		UserID:    user.ID,
		Content:   content,
		Approved:  payload.AutoSend,
		CreatedAt: time.Now(),
	}
	stored, err := p.drafts.Insert(ctx, draft)
	if err != nil {
		return fmt.Errorf("store draft for %s: %w", email.ID, err)
	}

	p.log.Info("draft %s generated for email %s", stored.ID, email.ID)

	p.realtime.Notify(ctx, user.ID, domain.EventDraftGenerated, map[string]any{
		"draftId": stored.ID,
		"emailId": email.ID,
		"preview": preview(content),
	})

	if payload.AutoSend {
		if err := p.send(ctx, stored, email); err != nil {
			return fmt.Errorf("send draft %s: %w", stored.ID, err)
		}
	}

	return nil
}

// send delivers the draft as a reply on the email's thread and marks it
// sent.
func (p *DraftProcessor) send(ctx context.Context, draft *domain.Draft, email *domain.Email) error {
	account, err := p.accounts.GetByID(ctx, email.AccountID)
	if err != nil {
		return fmt.Errorf("load account %s: %w", email.AccountID, err)
	}
	if account == nil {
		return fmt.Errorf("account %s not found", email.AccountID)
	}

	raw := draftsvc.BuildReply(email.From, email.Subject, draft.Content)
	if err := p.provider.SendRawMessage(ctx, account.RefreshToken, email.ThreadID, raw); err != nil {
		return fmt.Errorf("provider send: %w", err)
	}

	if err := p.drafts.MarkSent(ctx, draft.ID, time.Now()); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}

	p.log.Info("draft %s sent on thread %s", draft.ID, email.ThreadID)
	return nil
}

func preview(content string) string {
	if len(content) <= previewChars {
		return content
	}
	return content[:previewChars]
}
