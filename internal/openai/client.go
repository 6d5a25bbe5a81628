package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"swampbot/internal/models"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultModel is used when no model is configured
	DefaultModel = "gpt-4o-mini"

	// DefaultTimeout bounds a single chat completion call
	DefaultTimeout = 30 * time.Second
)

var (
	ErrAPIKeyNotSet = errors.New("openai API key is required")

	// ErrNoChoices is returned when a completion carries neither a tool call nor content.
	ErrNoChoices = errors.New("no completion choices returned")
)

// Client is the OpenAI chat completion provider
type Client struct {
	client     openai.Client
	logger     *zap.Logger
	modelName  string
	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
}

// Config for OpenAI client
type Config struct {
	APIKey     string
	ModelName  string
	BaseURL    string // optional, for compatible gateways
	MaxRetries int
	RetryDelay time.Duration
}

// NewClient creates a new OpenAI client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	logger.Info("OpenAI client initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		client:     openai.NewClient(opts...),
		logger:     logger,
		modelName:  cfg.ModelName,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		timeout:    DefaultTimeout,
	}, nil
}

// GenerateJSON forces a single call of req.ToolName and returns its
// arguments. If the model answered in plain content instead, the content is
// returned for the caller to extract JSON from.
func (c *Client) GenerateJSON(ctx context.Context, req models.StructuredRequest) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(req.System)}
	for _, ex := range req.Examples {
		messages = append(messages, openai.UserMessage(ex))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.modelName),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
		Tools: []openai.ChatCompletionToolUnionParam{
			openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
				Name:        req.ToolName,
				Description: openai.String(req.ToolDescription),
				Parameters:  openai.FunctionParameters(req.Schema),
			}),
		},
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String("required"),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := c.complete(ctx, params)
	if err != nil {
		return "", err
	}

	msg := completion.Choices[0].Message
	for _, call := range msg.ToolCalls {
		if call.Function.Name == req.ToolName && call.Function.Arguments != "" {
			return call.Function.Arguments, nil
		}
	}
	if msg.Content != "" {
		c.logger.Debug("Model answered without tool call", zap.String("tool", req.ToolName))
		return msg.Content, nil
	}
	return "", ErrNoChoices
}

// GenerateText returns a plain completion for a system and user prompt.
func (c *Client) GenerateText(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(temperature),
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	completion, err := c.complete(ctx, params)
	if err != nil {
		return "", err
	}
	return completion.Choices[0].Message.Content, nil
}

func (c *Client) complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying OpenAI request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = fmt.Errorf("openai API error: %w", err)
			c.logger.Error("OpenAI API error", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}
		if len(completion.Choices) == 0 {
			lastErr = ErrNoChoices
			continue
		}
		return completion, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (c *Client) Close() error {
	return nil
}

// GetModelInfo returns model information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":    "openai",
		"model":       c.modelName,
		"max_retries": c.maxRetries,
		"retry_delay": c.retryDelay.String(),
	}
}

// IsRateLimited reports whether err is an HTTP 429 from the API.
func IsRateLimited(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
