package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"swampbot/internal/models"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Client wraps the Gemini API client
type Client struct {
	client     *genai.Client
	logger     *zap.Logger
	modelName  string
	maxRetries int
	retryDelay time.Duration
}

// Config for Gemini client
type Config struct {
	APIKey     string
	ModelName  string // Default: "gemini-2.0-flash"
	MaxRetries int
	RetryDelay time.Duration
}

// NewClient creates a new Gemini client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.0-flash"
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	logger.Info("Gemini client initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		client:     client,
		logger:     logger,
		modelName:  cfg.ModelName,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Close closes the Gemini client
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) model(system string, maxTokens int, temperature float64) *genai.GenerativeModel {
	model := c.client.GenerativeModel(c.modelName)
	if system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr(float32(temperature)),
		TopP:        genai.Ptr[float32](0.9),
	}
	if maxTokens > 0 {
		model.GenerationConfig.MaxOutputTokens = genai.Ptr(int32(maxTokens))
	}
	return model
}

// GenerateJSON asks for a JSON object in the response body. Gemini has no
// forced tool call here, so the schema is spelled out in the prompt.
func (c *Client) GenerateJSON(ctx context.Context, req models.StructuredRequest) (string, error) {
	model := c.model(req.System, req.MaxTokens, req.Temperature)
	model.ResponseMIMEType = "application/json"

	prompt, err := BuildJSONPrompt(req)
	if err != nil {
		return "", err
	}
	return c.generate(ctx, model, prompt)
}

// GenerateText returns a plain completion for a system and user prompt.
func (c *Client) GenerateText(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	return c.generate(ctx, c.model(system, maxTokens, temperature), user)
}

func (c *Client) generate(ctx context.Context, model *genai.GenerativeModel, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying Gemini request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			lastErr = fmt.Errorf("gemini API error: %w", err)
			c.logger.Error("Gemini API error", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}

		text, err := responseText(resp)
		if err != nil {
			lastErr = err
			c.logger.Error("Unusable Gemini response", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}
		return text, nil
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response type from gemini")
	}
	return sb.String(), nil
}

// BuildJSONPrompt folds examples, the user turn and the expected object
// schema into a single prompt.
func BuildJSONPrompt(req models.StructuredRequest) (string, error) {
	schema, err := json.Marshal(req.Schema)
	if err != nil {
		return "", fmt.Errorf("failed to encode schema: %w", err)
	}

	var sb strings.Builder
	for _, ex := range req.Examples {
		sb.WriteString(ex)
		sb.WriteString("\n\n")
	}
	sb.WriteString(req.User)
	sb.WriteString("\n\nRespond with only a JSON object")
	if req.ToolName != "" {
		sb.WriteString(" for ")
		sb.WriteString(req.ToolName)
	}
	sb.WriteString(" matching this JSON schema:\n")
	sb.Write(schema)
	return sb.String(), nil
}

// GetModelInfo returns model information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":    "gemini",
		"model":       c.modelName,
		"max_retries": c.maxRetries,
		"retry_delay": c.retryDelay.String(),
	}
}
