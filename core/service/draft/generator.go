// Package draft generates reply drafts and builds the raw wire form for
// sending.
package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mailgate_server/core/domain"
	"mailgate_server/core/port/out"
)

// ErrEmptyResponse marks a completion that came back without content.
var ErrEmptyResponse = errors.New("empty draft response")

const systemPrompt = "You are a professional email assistant."

const promptTemplate = `You are a professional email assistant. Write a reply to this email.

From: %s
Subject: %s
Body: %s

%s

Requirements:
- Professional but friendly tone
- Keep it concise (2-3 paragraphs max)
- Match the formality level of the original email
- Do NOT include subject line
- Do NOT include greetings like "Dear..." if the original is casual
- Sign with just a first name placeholder: [Your Name]

Return ONLY the email body text.`

// maxBodyChars bounds the prompt. Replies only need the opening of long
// threads.
const maxBodyChars = 3000

// Generator produces reply drafts from a completion client.
type Generator struct {
	completions out.CompletionClient
}

// NewGenerator creates a draft generator.
func NewGenerator(completions out.CompletionClient) *Generator {
	return &Generator{completions: completions}
}

// GenerateReply writes a reply body for the email. template, when set,
// guides the reply's style and content.
func (g *Generator) GenerateReply(ctx context.Context, email *domain.Email, template *string) (string, error) {
	var templateInstruction string
	if template != nil && *template != "" {
		templateInstruction = fmt.Sprintf("Use this as a guide for the reply style/content: %q", *template)
	}

	prompt := fmt.Sprintf(promptTemplate, email.From, email.Subject, truncate(email.Body, maxBodyChars), templateInstruction)

	content, err := g.completions.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("draft completion: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}

	return content, nil
}

// BuildReply assembles the raw RFC 2822 reply addressed to the original
// sender on the original subject.
func BuildReply(to, subject, body string) []byte {
	lines := []string{
		"To: " + to,
		"Subject: Re: " + subject,
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}
	return []byte(strings.Join(lines, "\r\n"))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
