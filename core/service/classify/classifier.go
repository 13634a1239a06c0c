// Package classify produces AI classifications for emails no filtering
// rule claimed.
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"mailgate_server/core/domain"
	"mailgate_server/core/port/out"
)

// ErrEmptyResponse marks a completion that came back without content. The
// job is retryable.
var ErrEmptyResponse = errors.New("empty classification response")

const systemPrompt = "You are an email classification assistant. Return only valid JSON, no markdown."

const promptTemplate = `Analyze this email and return a JSON classification.

From: %s
Subject: %s
Body (truncated): %s

Return ONLY valid JSON with this exact structure:
{
  "category": "action-required" | "fyi" | "meeting" | "newsletter" | "spam" | "automated",
  "priority": <number 1-10>,
  "summary": "<one sentence summary>",
  "entities": {
    "people": ["<name>"],
    "companies": ["<company>"],
    "dates": ["<YYYY-MM-DD>"],
    "amounts": ["<$X.XX>"]
  }
}

Category rules:
- "action-required": Needs a response or action from the recipient (priority 7-10)
- "fyi": Informational, no action needed (priority 4-6)
- "meeting": Calendar invites or meeting-related (priority 6-8)
- "newsletter": Marketing emails, digests, updates (priority 1-3)
- "spam": Unsolicited commercial or phishing (priority 0-1)
- "automated": No-reply system notifications like shipping, receipts (priority 2-4)`

// maxBodyChars bounds the prompt; classification quality does not improve
// past the opening of the message.
const maxBodyChars = 2000

// Classifier turns one email into a structured classification.
type Classifier struct {
	completions out.CompletionClient
}

// NewClassifier creates a classifier over a completion client.
func NewClassifier(completions out.CompletionClient) *Classifier {
	return &Classifier{completions: completions}
}

// ClassifyEmail asks the model for a classification of the email.
func (c *Classifier) ClassifyEmail(ctx context.Context, email *domain.Email) (*domain.ClassificationResult, error) {
	prompt := fmt.Sprintf(promptTemplate, email.From, email.Subject, truncate(email.Body, maxBodyChars))

	content, err := c.completions.CompleteJSON(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("classification completion: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyResponse
	}

	var result domain.ClassificationResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("parse classification: %w", err)
	}
	if result.Category == "" {
		return nil, fmt.Errorf("classification missing category: %q", content)
	}

	return &result, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
