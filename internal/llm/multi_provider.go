package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"swampbot/internal/gemini"
	"swampbot/internal/models"
	"swampbot/internal/openai"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrAllProvidersFailed is returned when every configured provider errored.
var ErrAllProvidersFailed = errors.New("all providers failed")

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	ProviderOpenAI     ProviderType = "openai"
	ProviderGemini     ProviderType = "gemini"
	ProviderGroq       ProviderType = "groq"
	ProviderOpenRouter ProviderType = "openrouter"
)

// compatible lists OpenAI-compatible endpoints served by the OpenAI client.
var compatible = map[ProviderType]struct {
	baseURL string
	model   string
}{
	ProviderGroq:       {baseURL: "https://api.groq.com/openai/v1", model: "llama-3.3-70b-versatile"},
	ProviderOpenRouter: {baseURL: "https://openrouter.ai/api/v1", model: "google/gemini-2.0-flash-exp:free"},
}

// Supported reports whether t names a known provider.
func Supported(t ProviderType) bool {
	if t == ProviderOpenAI || t == ProviderGemini {
		return true
	}
	_, ok := compatible[t]
	return ok
}

// ProviderConfig holds configuration for a single provider instance
type ProviderConfig struct {
	Type       ProviderType  `yaml:"type"`
	APIKey     string        `yaml:"api_key"`
	ModelName  string        `yaml:"model_name"`
	BaseURL    string        `yaml:"base_url"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	// Rate limiting per provider
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// Provider is one LLM backend. GenerateJSON returns the raw model output
// expected to hold a JSON object; the caller extracts it.
type Provider interface {
	GenerateJSON(ctx context.Context, req models.StructuredRequest) (string, error)
	GenerateText(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
	Close() error
	GetModelInfo() map[string]interface{}
}

// RateLimitedProvider wraps a provider with a token bucket
type RateLimitedProvider struct {
	provider Provider
	limiter  *rate.Limiter
}

// NewRateLimitedProvider wraps a provider with rate limiting
func NewRateLimitedProvider(provider Provider, requestsPerMinute int) *RateLimitedProvider {
	every := time.Minute / time.Duration(requestsPerMinute)
	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Every(every), 1),
	}
}

func (p *RateLimitedProvider) GenerateJSON(ctx context.Context, req models.StructuredRequest) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	return p.provider.GenerateJSON(ctx, req)
}

func (p *RateLimitedProvider) GenerateText(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	return p.provider.GenerateText(ctx, system, user, maxTokens, temperature)
}

func (p *RateLimitedProvider) Close() error {
	return p.provider.Close()
}

func (p *RateLimitedProvider) GetModelInfo() map[string]interface{} {
	return p.provider.GetModelInfo()
}

// MultiProviderClient manages multiple LLM providers with fallback
type MultiProviderClient struct {
	providers    []*RateLimitedProvider
	currentIndex int
	mu           sync.RWMutex
	logger       *zap.Logger
	failureCount map[int]int
	maxFailures  int
}

// MultiProviderConfig holds configuration for multiple providers
type MultiProviderConfig struct {
	Providers   []ProviderConfig
	MaxFailures int // Max consecutive failures before switching provider
}

// NewMultiProviderClient creates a new multi-provider client
func NewMultiProviderClient(cfg MultiProviderConfig, logger *zap.Logger) (*MultiProviderClient, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	providers := make([]*RateLimitedProvider, 0, len(cfg.Providers))

	for i, providerCfg := range cfg.Providers {
		var provider Provider
		var err error

		switch providerCfg.Type {
		case ProviderOpenAI:
			provider, err = openai.NewClient(openai.Config{
				APIKey:     providerCfg.APIKey,
				ModelName:  providerCfg.ModelName,
				BaseURL:    providerCfg.BaseURL,
				MaxRetries: providerCfg.MaxRetries,
				RetryDelay: providerCfg.RetryDelay,
			}, logger)
		case ProviderGroq, ProviderOpenRouter:
			endpoint := compatible[providerCfg.Type]
			if providerCfg.BaseURL == "" {
				providerCfg.BaseURL = endpoint.baseURL
			}
			if providerCfg.ModelName == "" {
				providerCfg.ModelName = endpoint.model
			}
			provider, err = openai.NewClient(openai.Config{
				APIKey:     providerCfg.APIKey,
				ModelName:  providerCfg.ModelName,
				BaseURL:    providerCfg.BaseURL,
				MaxRetries: providerCfg.MaxRetries,
				RetryDelay: providerCfg.RetryDelay,
			}, logger)
		case ProviderGemini:
			provider, err = gemini.NewClient(gemini.Config{
				APIKey:     providerCfg.APIKey,
				ModelName:  providerCfg.ModelName,
				MaxRetries: providerCfg.MaxRetries,
				RetryDelay: providerCfg.RetryDelay,
			}, logger)
		default:
			logger.Warn("Unknown provider type, skipping",
				zap.String("type", string(providerCfg.Type)),
				zap.Int("index", i))
			continue
		}

		if err != nil {
			logger.Error("Failed to create provider",
				zap.String("type", string(providerCfg.Type)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}

		rateLimit := providerCfg.RequestsPerMinute
		if rateLimit <= 0 {
			rateLimit = 60
		}

		providers = append(providers, NewRateLimitedProvider(provider, rateLimit))

		logger.Info("Provider initialized",
			zap.String("type", string(providerCfg.Type)),
			zap.String("model", providerCfg.ModelName),
			zap.Int("rate_limit", rateLimit),
			zap.Int("index", i))
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers could be initialized")
	}

	return newMultiProviderClient(providers, cfg.MaxFailures, logger), nil
}

func newMultiProviderClient(providers []*RateLimitedProvider, maxFailures int, logger *zap.Logger) *MultiProviderClient {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	return &MultiProviderClient{
		providers:    providers,
		logger:       logger,
		failureCount: make(map[int]int),
		maxFailures:  maxFailures,
	}
}

func (c *MultiProviderClient) getCurrentProvider() (*RateLimitedProvider, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.providers[c.currentIndex], c.currentIndex
}

func (c *MultiProviderClient) switchToNextProvider() {
	c.mu.Lock()
	defer c.mu.Unlock()

	oldIndex := c.currentIndex
	c.currentIndex = (c.currentIndex + 1) % len(c.providers)

	c.logger.Info("Switching provider",
		zap.Int("from_index", oldIndex),
		zap.Int("to_index", c.currentIndex),
		zap.Int("total_providers", len(c.providers)))
}

// recordFailure reports whether the provider hit maxFailures in a row.
func (c *MultiProviderClient) recordFailure(providerIndex int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount[providerIndex]++

	if c.failureCount[providerIndex] >= c.maxFailures {
		c.logger.Warn("Provider reached max failures",
			zap.Int("provider_index", providerIndex),
			zap.Int("failures", c.failureCount[providerIndex]))
		c.failureCount[providerIndex] = 0
		return true
	}

	return false
}

func (c *MultiProviderClient) resetFailureCount(providerIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount[providerIndex] = 0
}

// do runs call against the current provider, at most once per configured
// provider. The current provider changes after maxFailures consecutive
// failures or on a rate-limit error.
func (c *MultiProviderClient) do(ctx context.Context, op string, call func(p *RateLimitedProvider) error) error {
	for attempts := 0; attempts < len(c.providers); attempts++ {
		provider, providerIndex := c.getCurrentProvider()

		c.logger.Debug("Attempting LLM call",
			zap.String("op", op),
			zap.Int("provider_index", providerIndex),
			zap.Int("attempt", attempts+1))

		err := call(provider)
		if err == nil {
			c.resetFailureCount(providerIndex)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Error("Provider failed",
			zap.String("op", op),
			zap.Int("provider_index", providerIndex),
			zap.Error(err))

		shouldSwitch := c.recordFailure(providerIndex)
		if shouldSwitch || isRateLimitError(err) {
			c.switchToNextProvider()
		}
	}

	return ErrAllProvidersFailed
}

// GenerateJSON asks the providers for a JSON object and returns the first one
// that could be extracted from a provider's output.
func (c *MultiProviderClient) GenerateJSON(ctx context.Context, req models.StructuredRequest) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, "json", func(p *RateLimitedProvider) error {
		raw, err := p.GenerateJSON(ctx, req)
		if err != nil {
			return err
		}
		obj, err := ExtractJSON(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", req.ToolName, err)
		}
		out = obj
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateText returns free-form text from the first provider that answers.
func (c *MultiProviderClient) GenerateText(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	var out string
	err := c.do(ctx, "text", func(p *RateLimitedProvider) error {
		text, err := p.GenerateText(ctx, system, user, maxTokens, temperature)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return fmt.Errorf("empty completion")
		}
		out = text
		return nil
	})
	return out, err
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if openai.IsRateLimited(err) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "rate limit")
}

// Close closes all providers
func (c *MultiProviderClient) Close() error {
	var lastErr error
	for i, provider := range c.providers {
		if err := provider.Close(); err != nil {
			c.logger.Error("Failed to close provider",
				zap.Int("index", i),
				zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// GetProvidersInfo returns information about all providers
func (c *MultiProviderClient) GetProvidersInfo() []map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := make([]map[string]interface{}, len(c.providers))
	for i, provider := range c.providers {
		providerInfo := provider.GetModelInfo()
		providerInfo["is_current"] = (i == c.currentIndex)
		providerInfo["failure_count"] = c.failureCount[i]
		info[i] = providerInfo
	}
	return info
}
