// Package llm wraps the completion API behind a circuit breaker.
package llm

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"mailgate_server/pkg/logger"
)

const DefaultModel = "gpt-4o-mini"

// Config holds completion client settings.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Client is a completion client with a shared circuit breaker. One Client
// per model; classification and drafting run on different models.
type Client struct {
	client      *openai.Client
	cb          *gobreaker.CircuitBreaker
	model       string
	maxTokens   int
	temperature float32
}

// NewClient creates a completion client.
func NewClient(cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 500
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	log := logger.Default().WithField("component", "llm_client")
	cbSettings := gobreaker.Settings{
		Name:        "completion-api",
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

	return &Client{
		client:      openai.NewClient(cfg.APIKey),
		cb:          gobreaker.NewCircuitBreaker(cbSettings),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
	}
}

// Complete runs a system+user chat completion and returns the raw content.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt, nil)
}

// CompleteJSON is Complete with the JSON-object response format enforced.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string, format *openai.ChatCompletionResponseFormat) (string, error) {
	result, err := c.cb.Execute(func() (any, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			ResponseFormat: format,
			Temperature:    c.temperature,
			MaxTokens:      c.maxTokens,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
