// Package provider implements mailbox provider adapters.
package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mailgate_server/core/port/out"
	"mailgate_server/pkg/logger"
)

// GmailAdapter implements out.MailProvider for Gmail.
type GmailAdapter struct {
	config *oauth2.Config
	cb     *gobreaker.CircuitBreaker
	log    *logger.Logger
}

// GmailConfig holds Gmail OAuth configuration.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// NewGmailAdapter creates a new Gmail adapter.
func NewGmailAdapter(cfg *GmailConfig) *GmailAdapter {
	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes: []string{
			gmail.GmailReadonlyScope,
			gmail.GmailSendScope,
		},
		Endpoint: google.Endpoint,
	}

	log := logger.Default().WithField("component", "gmail_adapter")
	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker %s: %s -> %s", name, from.String(), to.String())
		},
	}

	return &GmailAdapter{
		config: config,
		cb:     gobreaker.NewCircuitBreaker(cbSettings),
		log:    log,
	}
}

// ListNewMessageIDs returns ids of messages added since the history
// checkpoint, plus the checkpoint to persist for the next sync.
func (a *GmailAdapter) ListNewMessageIDs(ctx context.Context, refreshToken, historyID string) ([]string, string, error) {
	svc, err := a.getService(ctx, refreshToken)
	if err != nil {
		return nil, "", fmt.Errorf("gmail service: %w", err)
	}

	startID, err := strconv.ParseUint(historyID, 10, 64)
	if err != nil {
		return nil, "", fmt.Errorf("parse history id %q: %w", historyID, err)
	}

	var resp *gmail.ListHistoryResponse
	err = a.executeWithCircuitBreaker("history.list", func() error {
		var apiErr error
		resp, apiErr = svc.Users.History.List("me").
			StartHistoryId(startID).
			HistoryTypes("messageAdded").
			Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return nil, "", fmt.Errorf("list history: %w", err)
	}

	var ids []string
	seen := make(map[string]bool)
	for _, history := range resp.History {
		for _, added := range history.MessagesAdded {
			if added.Message == nil || seen[added.Message.Id] {
				continue
			}
			seen[added.Message.Id] = true
			ids = append(ids, added.Message.Id)
		}
	}

	return ids, strconv.FormatUint(resp.HistoryId, 10), nil
}

// ListRecentMessageIDs returns the newest inbox message ids and the
// current history checkpoint, backing the initial sync of a fresh account.
func (a *GmailAdapter) ListRecentMessageIDs(ctx context.Context, refreshToken string, max int64) ([]string, string, error) {
	svc, err := a.getService(ctx, refreshToken)
	if err != nil {
		return nil, "", fmt.Errorf("gmail service: %w", err)
	}

	var list *gmail.ListMessagesResponse
	err = a.executeWithCircuitBreaker("messages.list", func() error {
		var apiErr error
		list, apiErr = svc.Users.Messages.List("me").
			LabelIds("INBOX").
			MaxResults(max).
			Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return nil, "", fmt.Errorf("list messages: %w", err)
	}

	ids := make([]string, 0, len(list.Messages))
	for _, msg := range list.Messages {
		ids = append(ids, msg.Id)
	}

	var profile *gmail.Profile
	err = a.executeWithCircuitBreaker("getprofile", func() error {
		var apiErr error
		profile, apiErr = svc.Users.GetProfile("me").Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return nil, "", fmt.Errorf("get profile: %w", err)
	}

	return ids, strconv.FormatUint(profile.HistoryId, 10), nil
}

// FetchMessage loads one full message.
func (a *GmailAdapter) FetchMessage(ctx context.Context, refreshToken, messageID string) (*out.ProviderMessage, error) {
	svc, err := a.getService(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}

	var msg *gmail.Message
	err = a.executeWithCircuitBreaker("messages.get", func() error {
		var apiErr error
		msg, apiErr = svc.Users.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", messageID, err)
	}

	return convertMessage(msg), nil
}

// SendRawMessage sends a raw RFC 2822 message on the given thread.
func (a *GmailAdapter) SendRawMessage(ctx context.Context, refreshToken, threadID string, raw []byte) error {
	svc, err := a.getService(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("gmail service: %w", err)
	}

	message := &gmail.Message{
		Raw:      base64.RawURLEncoding.EncodeToString(raw),
		ThreadId: threadID,
	}

	err = a.executeWithCircuitBreaker("messages.send", func() error {
		_, apiErr := svc.Users.Messages.Send("me", message).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (a *GmailAdapter) getService(ctx context.Context, refreshToken string) (*gmail.Service, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	token := &oauth2.Token{RefreshToken: refreshToken}
	return gmail.NewService(ctx, option.WithTokenSource(
		a.config.TokenSource(ctx, token),
	))
}

// executeWithCircuitBreaker wraps an API call so server-side failures trip
// the breaker while client errors pass through.
func (a *GmailAdapter) executeWithCircuitBreaker(operation string, fn func() error) error {
	_, err := a.cb.Execute(func() (any, error) {
		if err := fn(); err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok {
				switch apiErr.Code {
				case 500, 502, 503, 429:
					return nil, err
				case 400, 401, 403, 404:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	if nce, ok := err.(*nonCircuitError); ok {
		return nce.err
	}

	if err != nil {
		a.log.WithError(err).Warn("gmail %s failed (breaker %s)", operation, a.cb.State().String())
	}
	return err
}

// nonCircuitError wraps errors that must not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

func convertMessage(msg *gmail.Message) *out.ProviderMessage {
	converted := &out.ProviderMessage{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		Snippet:      msg.Snippet,
		InternalDate: strconv.FormatInt(msg.InternalDate, 10),
	}
	if msg.Payload != nil {
		converted.Payload = convertPart(msg.Payload)
	}
	return converted
}

func convertPart(part *gmail.MessagePart) *out.ProviderPart {
	converted := &out.ProviderPart{
		MimeType: part.MimeType,
		Headers:  make([]out.ProviderHeader, 0, len(part.Headers)),
	}
	for _, h := range part.Headers {
		converted.Headers = append(converted.Headers, out.ProviderHeader{Name: h.Name, Value: h.Value})
	}
	if part.Body != nil && part.Body.Data != "" {
		converted.Body = &out.ProviderBody{Data: part.Body.Data}
	}
	for _, child := range part.Parts {
		converted.Parts = append(converted.Parts, convertPart(child))
	}
	return converted
}
