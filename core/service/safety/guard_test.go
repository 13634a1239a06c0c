package safety

import (
	"context"
	"strings"
	"testing"
	"time"

	"mailgate_server/core/domain"
)

// replyHistory fakes the draft repository with a list of sent-reply times
// per sender.
type replyHistory struct {
	sent map[string][]time.Time
}

func (h *replyHistory) Insert(_ context.Context, d *domain.Draft) (*domain.Draft, error) {
	return d, nil
}
func (h *replyHistory) GetByID(context.Context, string) (*domain.Draft, error) { return nil, nil }
func (h *replyHistory) MarkSent(context.Context, string, time.Time) error      { return nil }
func (h *replyHistory) CountCreatedSince(context.Context, string, time.Time) (int, error) {
	return 0, nil
}
func (h *replyHistory) CountSentRepliesTo(_ context.Context, _, sender string, since time.Time) (int, error) {
	count := 0
	for _, at := range h.sent[sender] {
		if !at.Before(since) {
			count++
		}
	}
	return count, nil
}

func newGuardAt(t *testing.T, now time.Time, sent map[string][]time.Time) *Guard {
	t.Helper()
	g := NewGuard(&replyHistory{sent: sent})
	g.now = func() time.Time { return now }
	return g
}

func TestNoReplyPatternsBlocked(t *testing.T) {
	g := newGuardAt(t, time.Now(), nil)

	senders := []string{
		"noreply@example.com",
		"NoReply@Example.com",
		"Some Service <no-reply@svc.io>",
		"donotreply@corp.com",
		"mailer-daemon@mx.example.com",
		"alerts@monitoring.io",
	}

	for _, sender := range senders {
		d, err := g.CanAutoReply(context.Background(), "u1", sender, nil)
		if err != nil {
			t.Fatalf("CanAutoReply(%q): %v", sender, err)
		}
		if d.Allowed {
			t.Errorf("sender %q must be blocked", sender)
		}
		if !strings.Contains(d.Reason, "no-reply pattern") {
			t.Errorf("reason %q must mention no-reply pattern", d.Reason)
		}
	}
}

func TestBlocklist(t *testing.T) {
	g := newGuardAt(t, time.Now(), nil)

	d, err := g.CanAutoReply(context.Background(), "u1", "boss@corp.com", &Config{
		Blocklist: []string{"BOSS@corp.com"},
	})
	if err != nil {
		t.Fatalf("CanAutoReply: %v", err)
	}
	if d.Allowed {
		t.Error("blocklisted sender must be denied")
	}
	if !strings.Contains(d.Reason, "blocklisted") {
		t.Errorf("reason %q must mention blocklist", d.Reason)
	}
}

func TestCooldown(t *testing.T) {
	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	g := newGuardAt(t, now, map[string][]time.Time{
		"alice@example.com": {now.Add(-10 * time.Minute)},
	})

	d, err := g.CanAutoReply(context.Background(), "u1", "alice@example.com", nil)
	if err != nil {
		t.Fatalf("CanAutoReply: %v", err)
	}
	if d.Allowed {
		t.Error("reply within 30m cooldown must be denied")
	}
	if !strings.Contains(d.Reason, "Cooldown") {
		t.Errorf("reason %q must mention Cooldown", d.Reason)
	}

	// Outside the window the reply is fine again.
	g = newGuardAt(t, now, map[string][]time.Time{
		"alice@example.com": {now.Add(-45 * time.Minute)},
	})
	d, err = g.CanAutoReply(context.Background(), "u1", "alice@example.com", nil)
	if err != nil {
		t.Fatalf("CanAutoReply: %v", err)
	}
	if !d.Allowed {
		t.Errorf("reply outside cooldown must be allowed, got %q", d.Reason)
	}
}

func TestDailyLimit(t *testing.T) {
	now := time.Date(2026, time.August, 28, 18, 0, 0, 0, time.UTC)
	g := newGuardAt(t, now, map[string][]time.Time{
		"bob@example.com": {
			now.Add(-10 * time.Hour),
			now.Add(-7 * time.Hour),
			now.Add(-4 * time.Hour),
		},
	})

	d, err := g.CanAutoReply(context.Background(), "u1", "bob@example.com", nil)
	if err != nil {
		t.Fatalf("CanAutoReply: %v", err)
	}
	if d.Allowed {
		t.Error("3 replies today must hit the daily cap")
	}
	if !strings.Contains(d.Reason, "Daily limit") {
		t.Errorf("reason %q must mention Daily limit", d.Reason)
	}
}

func TestCooldownTakesPrecedenceOverDailyLimit(t *testing.T) {
	now := time.Date(2026, time.August, 28, 18, 0, 0, 0, time.UTC)
	g := newGuardAt(t, now, map[string][]time.Time{
		"bob@example.com": {
			now.Add(-10 * time.Hour),
			now.Add(-7 * time.Hour),
			now.Add(-5 * time.Minute), // also inside the cooldown window
		},
	})

	d, err := g.CanAutoReply(context.Background(), "u1", "bob@example.com", nil)
	if err != nil {
		t.Fatalf("CanAutoReply: %v", err)
	}
	if d.Allowed {
		t.Fatal("must be denied")
	}
	if !strings.Contains(d.Reason, "Cooldown") {
		t.Errorf("cooldown must win when both checks fail, got %q", d.Reason)
	}
}

func TestAllowedWhenClean(t *testing.T) {
	g := newGuardAt(t, time.Now(), nil)

	d, err := g.CanAutoReply(context.Background(), "u1", "carol@example.com", nil)
	if err != nil {
		t.Fatalf("CanAutoReply: %v", err)
	}
	if !d.Allowed {
		t.Errorf("clean sender must be allowed, got %q", d.Reason)
	}
	if d.Reason != "" {
		t.Errorf("allowed decision must carry no reason, got %q", d.Reason)
	}
}

func TestConfigOverrides(t *testing.T) {
	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	g := newGuardAt(t, now, map[string][]time.Time{
		"alice@example.com": {now.Add(-10 * time.Minute)},
	})

	// 5 minute cooldown: the 10-minute-old reply no longer blocks.
	d, err := g.CanAutoReply(context.Background(), "u1", "alice@example.com", &Config{
		Cooldown: 5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("CanAutoReply: %v", err)
	}
	if !d.Allowed {
		t.Errorf("custom cooldown must be honored, got %q", d.Reason)
	}
}
