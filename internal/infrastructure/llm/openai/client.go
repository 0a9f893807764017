package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gfaraujo/normabot/internal/core/domain"
	"github.com/gfaraujo/normabot/internal/core/ports"
	"github.com/gfaraujo/normabot/internal/infrastructure/resilience"
)

type Config struct {
	APIKey      string
	BaseURL     string // empty means the public API
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

func (c Config) normalize() Config {
	if c.Model == "" {
		c.Model = openai.GPT4oMini
	}
	if c.Temperature <= 0 {
		// Low temperature: answers must stick to the provided excerpts.
		c.Temperature = 0.2
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 700
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Client implements the completion port over the OpenAI chat API.
type Client struct {
	cfg      Config
	api      *openai.Client
	executor *resilience.Executor
}

func NewClient(cfg Config, executor *resilience.Executor) *Client {
	cfg = cfg.normalize()
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		cfg:      cfg,
		api:      openai.NewClientWithConfig(apiCfg),
		executor: executor,
	}
}

var _ ports.Completer = (*Client)(nil)

func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	var answer string
	call := func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("chat completion: empty choices")
		}
		answer = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "llm.complete", call, classifyCompletionError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", domain.WrapError(domain.ErrBackendUnavailable, "llm.complete", err)
	}
	return answer, nil
}

func classifyCompletionError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		retryable := apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= 500
		return resilience.ErrorClassification{
			Retryable:     retryable,
			RecordFailure: apiErr.HTTPStatusCode >= 500,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     true,
		RecordFailure: true,
	}
}
