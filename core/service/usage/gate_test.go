package usage

import (
	"context"
	"testing"
	"time"

	"mailgate_server/core/domain"
	"mailgate_server/core/port/out"
)

// fakeEmailRepo implements out.EmailRepository; only counting matters here.
type fakeEmailRepo struct {
	count int
	since time.Time
}

func (f *fakeEmailRepo) Insert(_ context.Context, e *domain.Email) (*domain.Email, error) {
	return e, nil
}
func (f *fakeEmailRepo) GetByID(context.Context, string) (*domain.Email, error) { return nil, nil }
func (f *fakeEmailRepo) Update(context.Context, string, *out.EmailUpdate) error { return nil }
func (f *fakeEmailRepo) CountCreatedSince(_ context.Context, _ string, since time.Time) (int, error) {
	f.since = since
	return f.count, nil
}

type fakeDraftRepo struct{ count int }

func (f *fakeDraftRepo) Insert(_ context.Context, d *domain.Draft) (*domain.Draft, error) {
	return d, nil
}
func (f *fakeDraftRepo) GetByID(context.Context, string) (*domain.Draft, error) { return nil, nil }
func (f *fakeDraftRepo) MarkSent(context.Context, string, time.Time) error      { return nil }
func (f *fakeDraftRepo) CountCreatedSince(context.Context, string, time.Time) (int, error) {
	return f.count, nil
}
func (f *fakeDraftRepo) CountSentRepliesTo(context.Context, string, string, time.Time) (int, error) {
	return 0, nil
}

type fakeAccountRepo struct{ count int }

func (f *fakeAccountRepo) GetByID(context.Context, string) (*domain.MailAccount, error) {
	return nil, nil
}
func (f *fakeAccountRepo) UpdateHistoryID(context.Context, string, string) error { return nil }
func (f *fakeAccountRepo) CountActive(context.Context, string) (int, error)      { return f.count, nil }

type fakeAPIKeyRepo struct{ count int }

func (f *fakeAPIKeyRepo) CountActive(context.Context, string) (int, error) { return f.count, nil }

func TestGetTierLimitsUnknownFallsBackToFree(t *testing.T) {
	free := domain.GetTierLimits("free")
	unknown := domain.GetTierLimits("nonexistent")

	if unknown != free {
		t.Errorf("unknown tier limits = %+v, want free limits %+v", unknown, free)
	}
}

func TestGetTierLimitsAutoReply(t *testing.T) {
	if domain.GetTierLimits("free").AutoReply {
		t.Error("free tier must not allow auto-reply")
	}
	if !domain.GetTierLimits("pro").AutoReply {
		t.Error("pro tier must allow auto-reply")
	}
}

func TestCanProcessEmail(t *testing.T) {
	emails := &fakeEmailRepo{count: 99}
	g := NewGate(emails, &fakeDraftRepo{}, &fakeAccountRepo{}, &fakeAPIKeyRepo{})

	d, err := g.CanProcessEmail(context.Background(), "u1", "free")
	if err != nil {
		t.Fatalf("CanProcessEmail: %v", err)
	}
	if !d.Allowed {
		t.Errorf("99/100 must be allowed, got reason %q", d.Reason)
	}

	emails.count = 100
	d, err = g.CanProcessEmail(context.Background(), "u1", "free")
	if err != nil {
		t.Fatalf("CanProcessEmail: %v", err)
	}
	if d.Allowed {
		t.Error("100/100 must be denied")
	}
	if d.Reason == "" {
		t.Error("denial must carry a reason")
	}
}

func TestCanProcessEmailCountsFromStartOfMonth(t *testing.T) {
	emails := &fakeEmailRepo{}
	g := NewGate(emails, &fakeDraftRepo{}, &fakeAccountRepo{}, &fakeAPIKeyRepo{})
	fixed := time.Date(2026, time.August, 28, 15, 4, 5, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	if _, err := g.CanProcessEmail(context.Background(), "u1", "pro"); err != nil {
		t.Fatalf("CanProcessEmail: %v", err)
	}

	want := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	if !emails.since.Equal(want) {
		t.Errorf("counted since %v, want %v", emails.since, want)
	}
}

func TestCanGenerateDraft(t *testing.T) {
	g := NewGate(&fakeEmailRepo{}, &fakeDraftRepo{count: 10}, &fakeAccountRepo{}, &fakeAPIKeyRepo{})

	d, err := g.CanGenerateDraft(context.Background(), "u1", "free")
	if err != nil {
		t.Fatalf("CanGenerateDraft: %v", err)
	}
	if d.Allowed {
		t.Error("free tier at 10/10 drafts must be denied")
	}

	d, err = g.CanGenerateDraft(context.Background(), "u1", "pro")
	if err != nil {
		t.Fatalf("CanGenerateDraft: %v", err)
	}
	if !d.Allowed {
		t.Error("pro tier at 10/100 drafts must be allowed")
	}
}

func TestCanAddAccount(t *testing.T) {
	g := NewGate(&fakeEmailRepo{}, &fakeDraftRepo{}, &fakeAccountRepo{count: 1}, &fakeAPIKeyRepo{})

	d, err := g.CanAddAccount(context.Background(), "u1", "free")
	if err != nil {
		t.Fatalf("CanAddAccount: %v", err)
	}
	if d.Allowed {
		t.Error("free tier with 1 account must be denied a second")
	}

	d, err = g.CanAddAccount(context.Background(), "u1", "team")
	if err != nil {
		t.Fatalf("CanAddAccount: %v", err)
	}
	if !d.Allowed {
		t.Error("team tier with 1 account must be allowed more")
	}
}

func TestCanCreateAPIKey(t *testing.T) {
	g := NewGate(&fakeEmailRepo{}, &fakeDraftRepo{}, &fakeAccountRepo{}, &fakeAPIKeyRepo{count: 1})

	d, err := g.CanCreateAPIKey(context.Background(), "u1", "free")
	if err != nil {
		t.Fatalf("CanCreateAPIKey: %v", err)
	}
	if d.Allowed {
		t.Error("free tier at 1/1 keys must be denied")
	}
}

func TestCanUseAIClassification(t *testing.T) {
	g := NewGate(&fakeEmailRepo{}, &fakeDraftRepo{}, &fakeAccountRepo{}, &fakeAPIKeyRepo{})

	if g.CanUseAIClassification("free") {
		t.Error("free tier must not get AI classification")
	}
	if !g.CanUseAIClassification("pro") {
		t.Error("pro tier must get AI classification")
	}
	if g.CanUseAIClassification("nonexistent") {
		t.Error("unknown tier must fail closed like free")
	}
}
