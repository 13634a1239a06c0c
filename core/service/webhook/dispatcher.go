// Package webhook signs and delivers event payloads to user-configured
// URLs. Delivery is best-effort: the dispatcher retries bounded and never
// fails the calling stage.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"mailgate_server/pkg/httputil"
	"mailgate_server/pkg/logger"
)

// Event names carried in the X-Mailgate-Event header.
const (
	EventEmailFiltered   = "email.filtered"
	EventEmailClassified = "email.classified"
)

const (
	headerSignature = "X-Mailgate-Signature"
	headerEvent     = "X-Mailgate-Event"

	defaultMaxAttempts = 3
)

// EmailInfo identifies the email a payload is about.
type EmailInfo struct {
	ID         string `json:"id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Snippet    string `json:"snippet"`
	ReceivedAt string `json:"receivedAt"`
}

// ClassificationInfo carries the classification attached to the event.
type ClassificationInfo struct {
	Category string  `json:"category"`
	Priority int     `json:"priority"`
	Summary  *string `json:"summary,omitempty"`
}

// RuleInfo identifies the rule that fired.
type RuleInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Payload is the outbound wire contract. Immutable once constructed.
type Payload struct {
	Event          string              `json:"event"`
	Timestamp      string              `json:"timestamp"`
	Email          EmailInfo           `json:"email"`
	Classification *ClassificationInfo `json:"classification,omitempty"`
	Rule           *RuleInfo           `json:"rule,omitempty"`
}

// Dispatcher POSTs signed payloads with bounded retries.
type Dispatcher struct {
	client        *http.Client
	defaultSecret string
	maxAttempts   int
	backoffBase   time.Duration
	log           *logger.Logger
}

// NewDispatcher creates a dispatcher. defaultSecret signs payloads for
// users without a per-account secret; maxAttempts <= 0 falls back to the
// default of 3.
func NewDispatcher(client *http.Client, defaultSecret string, maxAttempts int) *Dispatcher {
	if client == nil {
		client = httputil.NewClient(nil)
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Dispatcher{
		client:        client,
		defaultSecret: defaultSecret,
		maxAttempts:   maxAttempts,
		backoffBase:   time.Second,
		log:           logger.Default().WithField("component", "webhook_dispatcher"),
	}
}

// Dispatch serializes, signs, and POSTs the payload. It never returns an
// error: a 2xx or any 4xx terminates immediately, a 5xx or network failure
// retries with exponential backoff, and exhaustion is logged and swallowed.
func (d *Dispatcher) Dispatch(ctx context.Context, url string, payload *Payload, secret string) {
	body, err := json.Marshal(payload)
	if err != nil {
		d.log.WithError(err).Error("failed to serialize webhook payload for %s", url)
		return
	}

	if secret == "" {
		secret = d.defaultSecret
	}
	signature := Sign(body, secret)

	for attempt := 0; attempt < d.maxAttempts; attempt++ {
		status, err := d.post(ctx, url, payload.Event, body, signature)
		if err == nil && (status < 500) {
			if status >= 400 {
				// Client errors are permanent for this payload.
				d.log.Warn("webhook %s returned %d, not retrying", url, status)
			}
			return
		}

		if err != nil {
			d.log.WithError(err).Warn("webhook %s failed (attempt %d/%d)", url, attempt+1, d.maxAttempts)
		} else {
			d.log.Warn("webhook %s returned %d (attempt %d/%d)", url, status, attempt+1, d.maxAttempts)
		}

		if attempt < d.maxAttempts-1 {
			backoff := d.backoffBase * (1 << attempt)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				d.log.Warn("webhook %s abandoned: %v", url, ctx.Err())
				return
			}
		}
	}

	d.log.Error("webhook %s failed after %d attempts, giving up", url, d.maxAttempts)
}

func (d *Dispatcher) post(ctx context.Context, url, event string, body []byte, signature string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSignature, signature)
	req.Header.Set(headerEvent, event)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// Sign computes the lowercase hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
