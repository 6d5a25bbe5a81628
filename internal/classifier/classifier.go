package classifier

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"swampbot/internal/models"

	"go.uber.org/zap"
)

// FallbackReason is reported whenever the verdict comes from the regex alone.
const FallbackReason = "heuristic fallback"

// MaxClassifyChars bounds the text sent to the model.
const MaxClassifyChars = 800

// QuestionRegex matches a question mark anywhere, or an interrogative lead
// after optional @mention tokens.
var QuestionRegex = regexp.MustCompile(`(?i)[?？‽]|^\s*(?:@[\w.-]+[:,-]?\s*)*(?:` +
	`(?:what|who|where|when|why|how)['’]?s|how\s+to|what|why|where|when|who|whom|whose|which|whether|how|` +
	`any\s+(?:updates?|chance|ideas?|way\s+to)|status\s+on|eta|is\s+there|are\s+there|possible\s+to|ok\s+to|would\s+it\s+be|` +
	`can\s+(?:someone|anyone)|does\s+(?:someone|anyone)\s+know|` +
	`(?:can|could|should|shall|would|will|do|does|did|have|has|had|may|might|must|is|are)\s+(?:you|we|they|he|she|it|i|there|someone|anyone)` +
	`)\b`)

// LooksLikeQuestion is the cheap gate: no network, no allocation beyond the regex.
func LooksLikeQuestion(text string) bool {
	return QuestionRegex.MatchString(strings.TrimSpace(text))
}

// JSONGenerator produces a JSON object for a structured request.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, req models.StructuredRequest) (json.RawMessage, error)
}

// Config tunes the confirmation tier.
type Config struct {
	Enabled     bool
	MaxTokens   int
	Temperature float64
}

// Classifier decides whether a message is a question worth answering.
type Classifier struct {
	llm    JSONGenerator
	cfg    Config
	logger *zap.Logger
}

func New(llm JSONGenerator, cfg Config, logger *zap.Logger) *Classifier {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 96
	}
	return &Classifier{llm: llm, cfg: cfg, logger: logger}
}

var resultSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"is_question": map[string]any{"type": "boolean"},
		"reason":      map[string]any{"type": "string"},
	},
	"required":             []string{"is_question", "reason"},
	"additionalProperties": false,
}

// Classify never fails. Without a usable model answer it returns the regex
// verdict with FallbackReason.
func (c *Classifier) Classify(ctx context.Context, text string) models.Classification {
	fallback := models.Classification{IsQuestion: LooksLikeQuestion(text), Reason: FallbackReason}
	if !c.cfg.Enabled || c.llm == nil {
		return fallback
	}

	raw, err := c.llm.GenerateJSON(ctx, models.StructuredRequest{
		System: "Classify if the user text asks a question (or clearly implies one). " +
			"Return ONLY via tool call. Keep reason under 15 words.",
		User:            truncate(text, MaxClassifyChars),
		ToolName:        "set_result",
		ToolDescription: "Return the classification result as JSON.",
		Schema:          resultSchema,
		MaxTokens:       c.cfg.MaxTokens,
		Temperature:     c.cfg.Temperature,
	})
	if err != nil {
		c.logger.Warn("Question classification failed, using heuristic", zap.Error(err))
		return fallback
	}

	var out struct {
		IsQuestion *bool  `json:"is_question"`
		Reason     string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.IsQuestion == nil {
		c.logger.Warn("Malformed classification, using heuristic", zap.ByteString("raw", raw))
		return fallback
	}

	return models.Classification{IsQuestion: *out.IsQuestion, Reason: out.Reason}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
