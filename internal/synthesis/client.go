// Package synthesis turns video metadata into structured recipe drafts using
// an OpenAI-compatible chat completion endpoint.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/emarutian/recipesync/internal/config"
	"github.com/emarutian/recipesync/internal/inference"
	"github.com/emarutian/recipesync/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

// ErrMissingCredential is returned when no AI credential is configured.
var ErrMissingCredential = errors.New("AI credential not configured (set AI_API_KEY)")

const operationRecipeSynthesis = "recipe_synthesis"

// UsageRecorder receives token counts for completed model calls.
type UsageRecorder interface {
	ObserveTokens(model string, promptTokens, completionTokens int)
}

// Client synthesizes recipes through the chat completion API.
type Client struct {
	client          *openai.Client
	config          config.AIConfig
	logger          *slog.Logger
	inferenceLogger *inference.Logger
	usage           UsageRecorder
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithInferenceLogger records every model call.
func WithInferenceLogger(l *inference.Logger) ClientOption {
	return func(c *Client) { c.inferenceLogger = l }
}

// WithUsageRecorder reports token usage, typically to metrics.
func WithUsageRecorder(r UsageRecorder) ClientOption {
	return func(c *Client) { c.usage = r }
}

// NewClient creates a synthesizer for cfg. httpClient may be nil.
func NewClient(cfg config.AIConfig, httpClient *http.Client, logger *slog.Logger, opts ...ClientOption) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	logger.Info("initialized recipe synthesizer",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"temperature", cfg.Temperature,
		"max_tokens", cfg.MaxTokens)
	return c
}

// Ready reports whether the client can make calls at all.
func (c *Client) Ready() error {
	if c.config.APIKey == "" {
		return ErrMissingCredential
	}
	return nil
}

// Synthesize makes one model call for video and returns a validated draft.
func (c *Client) Synthesize(ctx context.Context, video models.VideoRecord) (*models.RecipeDraft, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}

	timeout := c.config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	apiCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildRecipePrompt(video)},
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(apiCtx, request)
	latency := time.Since(start)

	c.logger.Debug("chat completion finished",
		"video_id", video.ExternalID,
		"duration_ms", latency.Milliseconds(),
		"success", err == nil)
	c.record(ctx, video, resp.Usage, latency, err)

	if err != nil {
		return nil, fmt.Errorf("chat completion for video %s: %w", video.ExternalID, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no completion choices returned from model %s", ErrInvalidDraft, c.config.Model)
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return nil, fmt.Errorf("%w: empty response from model %s (finish_reason: %s)",
			ErrInvalidDraft, c.config.Model, resp.Choices[0].FinishReason)
	}

	draft, err := ParseDraft(content)
	if err != nil {
		return nil, fmt.Errorf("parse draft for video %s: %w", video.ExternalID, err)
	}
	return draft, nil
}

func (c *Client) record(ctx context.Context, video models.VideoRecord, usage openai.Usage, latency time.Duration, err error) {
	if err == nil && c.usage != nil {
		c.usage.ObserveTokens(c.config.Model, usage.PromptTokens, usage.CompletionTokens)
	}
	if c.inferenceLogger == nil {
		return
	}

	metadata := map[string]any{"video_id": video.ExternalID}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		metadata["status_code"] = apiErr.HTTPStatusCode
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			metadata["is_rate_limit"] = true
		}
	}

	c.inferenceLogger.LogCall(ctx, inference.Call{
		Provider:     c.config.Provider,
		Model:        c.config.Model,
		Operation:    operationRecipeSynthesis,
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		Latency:      latency,
		Err:          err,
		Metadata:     metadata,
	})
}

// Unconfigured stands in when no AI credential is set. Every call fails with
// ErrMissingCredential.
type Unconfigured struct{}

// Ready always reports the missing credential.
func (Unconfigured) Ready() error { return ErrMissingCredential }

// Synthesize always fails.
func (Unconfigured) Synthesize(ctx context.Context, video models.VideoRecord) (*models.RecipeDraft, error) {
	return nil, ErrMissingCredential
}
