package worker

import (
	"context"
	"testing"

	"mailgate_server/core/domain"
	"mailgate_server/core/port/out"
	"mailgate_server/core/service/usage"
)

type memAccountRepo struct {
	accounts  map[string]*domain.MailAccount
	historyID map[string]string
}

func newMemAccountRepo(accounts ...*domain.MailAccount) *memAccountRepo {
	repo := &memAccountRepo{
		accounts:  make(map[string]*domain.MailAccount),
		historyID: make(map[string]string),
	}
	for _, a := range accounts {
		repo.accounts[a.ID] = a
	}
	return repo
}

func (r *memAccountRepo) GetByID(_ context.Context, id string) (*domain.MailAccount, error) {
	return r.accounts[id], nil
}

func (r *memAccountRepo) UpdateHistoryID(_ context.Context, id, historyID string) error {
	r.historyID[id] = historyID
	return nil
}

func (r *memAccountRepo) CountActive(context.Context, string) (int, error) { return 1, nil }

type fakeProvider struct {
	messages      map[string]*out.ProviderMessage
	nextHistoryID string
	recentCalls   int
	historyCalls  int
}

func (f *fakeProvider) ListNewMessageIDs(_ context.Context, _, _ string) ([]string, string, error) {
	f.historyCalls++
	return f.ids(), f.nextHistoryID, nil
}

func (f *fakeProvider) ListRecentMessageIDs(_ context.Context, _ string, _ int64) ([]string, string, error) {
	f.recentCalls++
	return f.ids(), f.nextHistoryID, nil
}

func (f *fakeProvider) FetchMessage(_ context.Context, _, messageID string) (*out.ProviderMessage, error) {
	return f.messages[messageID], nil
}

func (f *fakeProvider) SendRawMessage(context.Context, string, string, []byte) error { return nil }

func (f *fakeProvider) ids() []string {
	ids := make([]string, 0, len(f.messages))
	for id := range f.messages {
		ids = append(ids, id)
	}
	return ids
}

func providerMessage(id string) *out.ProviderMessage {
	return &out.ProviderMessage{
		ID:           id,
		ThreadID:     "t-" + id,
		Snippet:      "snippet",
		InternalDate: "1700000000000",
		Payload: &out.ProviderPart{
			MimeType: "text/plain",
			Headers: []out.ProviderHeader{
				{Name: "From", Value: "billing@vendor.com"},
				{Name: "To", Value: "me@example.com"},
				{Name: "Subject", Value: "Invoice #123"},
			},
			Body: &out.ProviderBody{Data: "WW91ciBpbnZvaWNlIGlzIGF0dGFjaGVkLg"},
		},
	}
}

func newIngestProcessor(emails *memEmailRepo, accounts *memAccountRepo, provider *fakeProvider) (*IngestProcessor, *recordingEnqueuer, *recordingRealtime) {
	users := &stubUserRepo{user: &domain.User{ID: "u1", Tier: "pro"}}
	gate := usage.NewGate(emails, stubDraftRepo{}, stubAccountRepo{}, stubAPIKeyRepo{})
	enqueuer := &recordingEnqueuer{}
	realtime := &recordingRealtime{}

	processor := NewIngestProcessor(accounts, users, emails, provider, gate, realtime, enqueuer)
	return processor, enqueuer, realtime
}

func ingestMessage() *Message {
	return NewMessage(JobMailIngest, map[string]any{"account_id": "a1", "user_id": "u1"})
}

func TestIngestProcessorStoresAndQueuesNewMessages(t *testing.T) {
	emails := newMemEmailRepo()
	accounts := newMemAccountRepo(&domain.MailAccount{
		ID: "a1", UserID: "u1", RefreshToken: "rt", HistoryID: "100", Active: true,
	})
	provider := &fakeProvider{
		messages:      map[string]*out.ProviderMessage{"m1": providerMessage("m1")},
		nextHistoryID: "200",
	}
	processor, enqueuer, realtime := newIngestProcessor(emails, accounts, provider)

	if err := processor.Process(context.Background(), ingestMessage()); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if provider.historyCalls != 1 || provider.recentCalls != 0 {
		t.Error("a checkpointed account must sync incrementally")
	}
	if len(emails.emails) != 1 {
		t.Fatalf("stored %d emails, want 1", len(emails.emails))
	}
	for _, e := range emails.emails {
		if e.ExternalID != "m1" || e.From != "billing@vendor.com" || e.Subject != "Invoice #123" {
			t.Errorf("stored email = %+v", e)
		}
		if e.Body != "Your invoice is attached." {
			t.Errorf("body = %q, want decoded text", e.Body)
		}
	}
	if len(enqueuer.filterIDs) != 1 {
		t.Errorf("filter queue = %v, want one entry", enqueuer.filterIDs)
	}
	if len(realtime.events) != 1 || realtime.events[0] != domain.EventNewEmail {
		t.Errorf("events = %v, want one new_email", realtime.events)
	}
	if accounts.historyID["a1"] != "200" {
		t.Errorf("checkpoint = %q, want 200", accounts.historyID["a1"])
	}
}

func TestIngestProcessorInitialSyncOnFreshAccount(t *testing.T) {
	emails := newMemEmailRepo()
	accounts := newMemAccountRepo(&domain.MailAccount{
		ID: "a1", UserID: "u1", RefreshToken: "rt", Active: true,
	})
	provider := &fakeProvider{
		messages:      map[string]*out.ProviderMessage{"m1": providerMessage("m1")},
		nextHistoryID: "150",
	}
	processor, _, _ := newIngestProcessor(emails, accounts, provider)

	if err := processor.Process(context.Background(), ingestMessage()); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if provider.recentCalls != 1 || provider.historyCalls != 0 {
		t.Error("an account with no checkpoint must run the initial sync")
	}
	if accounts.historyID["a1"] != "150" {
		t.Errorf("checkpoint = %q, want 150", accounts.historyID["a1"])
	}
}

func TestIngestProcessorIsIdempotent(t *testing.T) {
	emails := newMemEmailRepo()
	accounts := newMemAccountRepo(&domain.MailAccount{
		ID: "a1", UserID: "u1", RefreshToken: "rt", HistoryID: "100", Active: true,
	})
	provider := &fakeProvider{
		messages:      map[string]*out.ProviderMessage{"m1": providerMessage("m1")},
		nextHistoryID: "200",
	}
	processor, enqueuer, realtime := newIngestProcessor(emails, accounts, provider)

	for i := 0; i < 2; i++ {
		if err := processor.Process(context.Background(), ingestMessage()); err != nil {
			t.Fatalf("Process run %d: %v", i, err)
		}
	}

	if len(emails.emails) != 1 {
		t.Errorf("stored %d emails after replay, want 1", len(emails.emails))
	}
	if len(enqueuer.filterIDs) != 1 {
		t.Errorf("filter queue = %v, duplicates must not re-enter the pipeline", enqueuer.filterIDs)
	}
	if len(realtime.events) != 1 {
		t.Errorf("events = %v, duplicates must not notify", realtime.events)
	}
}

func TestIngestProcessorInactiveAccountSkipped(t *testing.T) {
	emails := newMemEmailRepo()
	accounts := newMemAccountRepo(&domain.MailAccount{ID: "a1", UserID: "u1", Active: false})
	provider := &fakeProvider{messages: map[string]*out.ProviderMessage{"m1": providerMessage("m1")}}
	processor, _, _ := newIngestProcessor(emails, accounts, provider)

	if err := processor.Process(context.Background(), ingestMessage()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(emails.emails) != 0 {
		t.Error("inactive account must not ingest")
	}
}

func TestIngestProcessorStopsAtMonthlyLimit(t *testing.T) {
	emails := newMemEmailRepo()
	// Pro allows 1000 emails per month.
	emails.countOverride = 1000

	accounts := newMemAccountRepo(&domain.MailAccount{
		ID: "a1", UserID: "u1", RefreshToken: "rt", HistoryID: "100", Active: true,
	})
	provider := &fakeProvider{
		messages:      map[string]*out.ProviderMessage{"m1": providerMessage("m1")},
		nextHistoryID: "200",
	}
	processor, enqueuer, _ := newIngestProcessor(emails, accounts, provider)

	if err := processor.Process(context.Background(), ingestMessage()); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(enqueuer.filterIDs) != 0 {
		t.Error("sync past the monthly limit must not queue filtering")
	}
}
