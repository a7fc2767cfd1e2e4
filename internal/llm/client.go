// Package llm wraps the OpenAI API behind the small collaborator
// contracts the dispatch core consumes: reply generation, translation
// and speech synthesis. Retry behavior lives here, not in callers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrUnreachable is returned once the retry budget for a model call is
// exhausted.
var ErrUnreachable = errors.New("llm: provider unreachable")

// Client is the reply-generation contract consumed by the classifier
// and the feature handlers.
type Client interface {
	GenerateReply(ctx context.Context, prompt string) (string, error)
}

// RetryPolicy is the bounded retry schedule for one logical model call.
// Zero values fall back to the defaults (2 attempts, 500ms backoff,
// 30s per-attempt timeout).
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 2
	}
	if p.Backoff <= 0 {
		p.Backoff = 500 * time.Millisecond
	}
	if p.Timeout <= 0 {
		p.Timeout = 30 * time.Second
	}
	return p
}

// OpenAIClient implements Client against the chat completions API.
type OpenAIClient struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature float32
	retry       RetryPolicy
	logger      *zap.Logger
}

func NewOpenAIClient(apiKey, model string, maxTokens int, temperature float64, retry RetryPolicy, logger *zap.Logger) *OpenAIClient {
	return &OpenAIClient{
		api:         openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		retry:       retry.withDefaults(),
		logger:      logger,
	}
}

func (c *OpenAIClient) GenerateReply(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.retry.Timeout)
		resp, err := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
		})
		cancel()

		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("llm: empty completion")
			}
			return strings.TrimSpace(resp.Choices[0].Message.Content), nil
		}

		lastErr = err
		c.logger.Warn("model call failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.retry.MaxAttempts),
			zap.Error(err))

		if attempt < c.retry.MaxAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retry.Backoff):
			}
		}
	}
	return "", fmt.Errorf("%w: %v", ErrUnreachable, lastErr)
}
