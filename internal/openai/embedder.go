package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	// DefaultEmbeddingModel is used when no model is configured
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension matches models.EmbeddingDimension
	DefaultEmbeddingDimension = 1536

	// MaxEmbedInputChars bounds the text sent per embedding call
	MaxEmbedInputChars = 4000
)

// Embedder turns message text into vectors with the OpenAI embeddings API
type Embedder struct {
	client    openai.Client
	model     string
	dimension int
}

type embedderOptions struct {
	model     string
	dimension int
	baseURL   string
}

// EmbedderOption configures an Embedder
type EmbedderOption func(*embedderOptions)

func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		if model != "" {
			o.model = model
		}
	}
}

func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		if dimension > 0 {
			o.dimension = dimension
		}
	}
}

// WithBaseURL points the embedder at a compatible gateway or a test server.
func WithBaseURL(url string) EmbedderOption {
	return func(o *embedderOptions) {
		o.baseURL = url
	}
}

// NewEmbedder creates an Embedder
func NewEmbedder(apiKey string, opts ...EmbedderOption) *Embedder {
	options := embedderOptions{
		model:     DefaultEmbeddingModel,
		dimension: DefaultEmbeddingDimension,
	}
	for _, opt := range opts {
		opt(&options)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if options.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(options.baseURL))
	}

	return &Embedder{
		client:    openai.NewClient(reqOpts...),
		model:     options.model,
		dimension: options.dimension,
	}
}

// Embed returns the embedding of text, truncated to MaxEmbedInputChars.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if r := []rune(text); len(r) > MaxEmbedInputChars {
		text = string(r[:MaxEmbedInputChars])
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	}
	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings generated")
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

func (e *Embedder) ModelName() string {
	return e.model
}

func (e *Embedder) Dimension() int {
	return e.dimension
}
