package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mailgate_server/core/domain"
	"mailgate_server/core/port/out"
	"mailgate_server/core/service/parser"
	"mailgate_server/core/service/usage"
	"mailgate_server/pkg/logger"
)

// Enqueuer hands an email to a downstream stage.
type Enqueuer interface {
	PublishFilter(ctx context.Context, emailID, userID string) (string, error)
	PublishClassify(ctx context.Context, emailID, userID string) (string, error)
}

// initialSyncMax bounds the first sync of a fresh account.
const initialSyncMax = 50

// IngestProcessor syncs one account's new messages into storage and queues
// them for filtering.
type IngestProcessor struct {
	accounts out.AccountRepository
	users    out.UserRepository
	emails   out.EmailRepository
	provider out.MailProvider
	gate     *usage.Gate
	realtime out.RealtimePort
	enqueuer Enqueuer
	log      *logger.Logger
}

func NewIngestProcessor(
	accounts out.AccountRepository,
	users out.UserRepository,
	emails out.EmailRepository,
	provider out.MailProvider,
	gate *usage.Gate,
	realtime out.RealtimePort,
	enqueuer Enqueuer,
) *IngestProcessor {
	return &IngestProcessor{
		accounts: accounts,
		users:    users,
		emails:   emails,
		provider: provider,
		gate:     gate,
		realtime: realtime,
		enqueuer: enqueuer,
		log:      logger.Default().WithField("component", "ingest_processor"),
	}
}

func (p *IngestProcessor) Process(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[IngestPayload](msg)
	if err != nil {
		return fmt.Errorf("parse ingest payload: %w", err)
	}

	account, err := p.accounts.GetByID(ctx, payload.AccountID)
	if err != nil {
		return fmt.Errorf("load account %s: %w", payload.AccountID, err)
	}
	if account == nil || !account.Active {
		p.log.Info("account %s not found or inactive, skipping sync", payload.AccountID)
		return nil
	}

	user, err := p.users.GetByID(ctx, account.UserID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", account.UserID, err)
	}
	if user == nil {
		p.log.Info("user %s not found, skipping sync", account.UserID)
		return nil
	}

	ids, nextHistoryID, err := p.listMessageIDs(ctx, account)
	if err != nil {
		return fmt.Errorf("list messages for account %s: %w", account.ID, err)
	}

	stored := 0
	for _, id := range ids {
		decision, err := p.gate.CanProcessEmail(ctx, user.ID, user.Tier)
		if err != nil {
			return fmt.Errorf("usage check: %w", err)
		}
		if !decision.Allowed {
			p.log.Warn("stopping sync for account %s: %s", account.ID, decision.Reason)
			break
		}

		inserted, err := p.storeMessage(ctx, account, id)
		if err != nil {
			p.log.WithError(err).Error("failed to store message %s", id)
			continue
		}
		if inserted == nil {
			// Already ingested on a previous sync.
			continue
		}
		stored++

		p.realtime.Notify(ctx, user.ID, domain.EventNewEmail, map[string]any{
			"emailId": inserted.ID,
			"from":    inserted.From,
			"subject": inserted.Subject,
		})

		if _, err := p.enqueuer.PublishFilter(ctx, inserted.ID, user.ID); err != nil {
			p.log.WithError(err).Error("failed to queue filtering for email %s", inserted.ID)
		}
	}

	if nextHistoryID != "" && nextHistoryID != account.HistoryID {
		if err := p.accounts.UpdateHistoryID(ctx, account.ID, nextHistoryID); err != nil {
			return fmt.Errorf("checkpoint history id: %w", err)
		}
	}

	p.log.Info("synced account %s: %d new of %d listed", account.ID, stored, len(ids))
	return nil
}

// listMessageIDs picks initial sync for fresh accounts, incremental history
// for checkpointed ones.
func (p *IngestProcessor) listMessageIDs(ctx context.Context, account *domain.MailAccount) ([]string, string, error) {
	if account.HistoryID == "" {
		return p.provider.ListRecentMessageIDs(ctx, account.RefreshToken, initialSyncMax)
	}
	return p.provider.ListNewMessageIDs(ctx, account.RefreshToken, account.HistoryID)
}

// storeMessage fetches, parses and inserts one message. A nil email with a
// nil error means the message was already stored.
func (p *IngestProcessor) storeMessage(ctx context.Context, account *domain.MailAccount, messageID string) (*domain.Email, error) {
	raw, err := p.provider.FetchMessage(ctx, account.RefreshToken, messageID)
	if err != nil {
		return nil, fmt.Errorf("fetch message: %w", err)
	}

	parsed := parser.ParseMessage(raw)

	email := &domain.Email{
		ID:         uuid.New().String(),
		AccountID:  account.ID,
		UserID:     account.UserID,
		ExternalID: raw.ID,
		ThreadID:   raw.ThreadID,
		From:       parsed.From,
		To:         parsed.To,
		Subject:    parsed.Subject,
		Body:       parsed.Body,
		Snippet:    raw.Snippet,
		ReceivedAt: parsed.Date,
		CreatedAt:  time.Now(),
	}

	return p.emails.Insert(ctx, email)
}
