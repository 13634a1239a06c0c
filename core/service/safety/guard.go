// Package safety authorizes automated replies. The guard is advisory but
// mandatory: every automated send must consult it first.
package safety

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mailgate_server/core/port/out"
)

// noReplyPatterns are sender fragments that never get an automated reply.
var noReplyPatterns = []string{
	"noreply@",
	"no-reply@",
	"donotreply@",
	"do-not-reply@",
	"mailer-daemon@",
	"postmaster@",
	"notifications@",
	"alert@",
	"alerts@",
}

const (
	defaultCooldown  = 30 * time.Minute
	defaultMaxPerDay = 3
)

// Config tunes the guard per call. Zero values take the defaults.
type Config struct {
	Cooldown        time.Duration
	MaxPerSenderDay int
	Blocklist       []string
}

// Decision is the structured guard result; Reason is human-readable and
// only set on denial.
type Decision struct {
	Allowed bool
	Reason  string
}

// Guard evaluates the fixed safety checks in order: no-reply patterns,
// blocklist, cooldown window, daily cap. First failure wins.
type Guard struct {
	drafts out.DraftRepository
	now    func() time.Time
}

// NewGuard creates a guard over the draft history.
func NewGuard(drafts out.DraftRepository) *Guard {
	return &Guard{drafts: drafts, now: time.Now}
}

// CanAutoReply decides whether an automated reply to sender is safe.
func (g *Guard) CanAutoReply(ctx context.Context, userID, sender string, cfg *Config) (Decision, error) {
	cooldown := defaultCooldown
	maxPerDay := defaultMaxPerDay
	var blocklist []string
	if cfg != nil {
		if cfg.Cooldown > 0 {
			cooldown = cfg.Cooldown
		}
		if cfg.MaxPerSenderDay > 0 {
			maxPerDay = cfg.MaxPerSenderDay
		}
		blocklist = cfg.Blocklist
	}

	senderLower := strings.ToLower(sender)

	for _, pattern := range noReplyPatterns {
		if strings.Contains(senderLower, pattern) {
			return Decision{Reason: fmt.Sprintf("Sender matches no-reply pattern: %s", pattern)}, nil
		}
	}

	for _, blocked := range blocklist {
		if strings.Contains(senderLower, strings.ToLower(blocked)) {
			return Decision{Reason: fmt.Sprintf("Sender is blocklisted: %s", blocked)}, nil
		}
	}

	recent, err := g.drafts.CountSentRepliesTo(ctx, userID, sender, g.now().Add(-cooldown))
	if err != nil {
		return Decision{}, fmt.Errorf("count recent replies: %w", err)
	}
	if recent > 0 {
		return Decision{Reason: fmt.Sprintf("Cooldown active: replied to %s within last %d minutes", sender, int(cooldown.Minutes()))}, nil
	}

	daily, err := g.drafts.CountSentRepliesTo(ctx, userID, sender, g.startOfDay())
	if err != nil {
		return Decision{}, fmt.Errorf("count daily replies: %w", err)
	}
	if daily >= maxPerDay {
		return Decision{Reason: fmt.Sprintf("Daily limit reached: %d replies to %s today", maxPerDay, sender)}, nil
	}

	return Decision{Allowed: true}, nil
}

// startOfDay is local midnight, matching how the daily counter resets.
func (g *Guard) startOfDay() time.Time {
	now := g.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
