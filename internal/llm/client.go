// Package llm adapts an OpenAI-compatible chat completion endpoint for
// the rest of the service. The default configuration points at Gemini's
// compatibility layer, but any endpoint speaking the same protocol works.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"georisk/internal/domain"
	"georisk/internal/observability"
)

// Generator produces one completion from an optional system instruction
// and an ordered list of conversation turns.
type Generator interface {
	Generate(ctx context.Context, system string, turns []domain.ChatEntry) (string, error)
}

// Config carries the connection settings for the chat model.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerMinute int
}

// Client wraps an eino chat model with client-side rate limiting. The
// limiter is shared by all callers so analysis, chat and explain traffic
// together stay under the upstream quota.
type Client struct {
	model   model.ChatModel
	limiter *rate.Limiter
	metrics *observability.Metrics
	logger  *slog.Logger
}

func New(ctx context.Context, cfg Config, metrics *observability.Metrics, logger *slog.Logger) (*Client, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init chat model: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)

	return &Client{
		model:   cm,
		limiter: limiter,
		metrics: metrics,
		logger:  logger,
	}, nil
}

func (c *Client) Generate(ctx context.Context, system string, turns []domain.ChatEntry) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	messages := make([]*schema.Message, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, &schema.Message{Role: schema.System, Content: system})
	}
	for _, turn := range turns {
		role := schema.User
		if turn.Role == domain.RoleAssistant {
			role = schema.Assistant
		}
		messages = append(messages, &schema.Message{Role: role, Content: turn.Text})
	}

	start := time.Now()
	resp, err := c.model.Generate(ctx, messages)
	c.metrics.LLMDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		// Only the caller's own cancellation passes through; a timeout
		// inside the model client is an upstream failure.
		if ctx.Err() != nil {
			return "", err
		}
		c.metrics.UpstreamRequests.WithLabelValues("llm", "error").Inc()
		c.logger.Warn("chat model call failed", "error", err)
		return "", fmt.Errorf("llm: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	c.metrics.UpstreamRequests.WithLabelValues("llm", "ok").Inc()

	return resp.Content, nil
}
