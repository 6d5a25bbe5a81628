package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"swampbot/internal/classifier"
	"swampbot/internal/models"
	"swampbot/internal/similarity"

	"go.uber.org/zap"
)

// Recall strategies for picking the history handed to the drafter.
const (
	StrategyRecency  = "recency"
	StrategySemantic = "semantic"
)

// LeadIn opens every auto-answer post.
const LeadIn = "I think we covered this recently"

// threadReplies is how many thread replies follow each semantic match.
const threadReplies = 2

// TimeLayout formats history timestamps for the drafter and replies.
const TimeLayout = "Jan 2, 3:04 PM MST"

// HistoryStore is the slice of the message store the engine needs.
type HistoryStore interface {
	AddMessage(msg models.Message, vector []float32)
	RecentInChat(ctx context.Context, chatID string, sinceMs int64) ([]models.Message, error)
	GetVector(ctx context.Context, id string) ([]float32, bool, error)
	GetReplies(ctx context.Context, parentID string, limit int) ([]models.Message, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type QuestionClassifier interface {
	Classify(ctx context.Context, text string) models.Classification
}

type RecapDrafter interface {
	Draft(ctx context.Context, question string, items []models.HistoryItem) models.Decision
}

// NameResolver maps a person id to a display name.
type NameResolver interface {
	DisplayName(ctx context.Context, personID, chatID string) string
}

// ReplyFunc posts text into a chat.
type ReplyFunc func(ctx context.Context, chatID, text string) error

type EngineConfig struct {
	LookbackDays     int
	MinConfidence    float64
	MaxCandidates    int
	RecallStrategy   string
	SemanticTopK     int
	SemanticMinScore float64
	Location         *time.Location
}

// Engine indexes chat messages and answers repeated questions from history.
type Engine struct {
	store      HistoryStore
	embedder   Embedder
	classifier QuestionClassifier
	drafter    RecapDrafter
	names      NameResolver
	cfg        EngineConfig
	now        func() time.Time
	logger     *zap.Logger
}

func NewEngine(store HistoryStore, embedder Embedder, cls QuestionClassifier, drafter RecapDrafter,
	names NameResolver, cfg EngineConfig, logger *zap.Logger) *Engine {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 7
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 40
	}
	if cfg.RecallStrategy == "" {
		cfg.RecallStrategy = StrategyRecency
	}
	if cfg.SemanticTopK <= 0 {
		cfg.SemanticTopK = 5
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	return &Engine{
		store:      store,
		embedder:   embedder,
		classifier: cls,
		drafter:    drafter,
		names:      names,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
}

// Index stores msg with its embedding. Short texts and failed embeddings get
// the zero vector; empty texts are not stored.
func (e *Engine) Index(ctx context.Context, msg models.Message) {
	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	var vec []float32
	if e.embedder != nil && utf8.RuneCountInString(msg.Text) >= models.MinEmbedChars {
		v, err := e.embedder.Embed(ctx, msg.Text)
		if err != nil {
			e.logger.Warn("Embedding failed, storing zero vector",
				zap.String("message_id", msg.ID),
				zap.Error(err))
		} else {
			vec = v
		}
	}

	e.store.AddMessage(msg, vec)
}

// MaybeAutoReply runs the duplicate-question pipeline for msg and reports
// whether a reply was posted. Every failure ends the pipeline quietly.
func (e *Engine) MaybeAutoReply(ctx context.Context, msg models.Message, reply ReplyFunc) bool {
	text := strings.TrimSpace(msg.Text)
	if text == "" || !classifier.LooksLikeQuestion(text) {
		return false
	}

	verdict := e.classifier.Classify(ctx, text)
	if !verdict.IsQuestion {
		e.logger.Debug("Not a question", zap.String("message_id", msg.ID), zap.String("reason", verdict.Reason))
		return false
	}

	since := e.since()
	candidates, err := e.recall(ctx, msg, since)
	if err != nil {
		e.logger.Error("History recall failed", zap.String("chat_id", msg.ChatID), zap.Error(err))
		return false
	}
	if len(candidates) == 0 {
		return false
	}

	if e.cfg.RecallStrategy == StrategySemantic {
		candidates = e.narrow(ctx, msg, text, since, candidates)
		if len(candidates) == 0 {
			return false
		}
	}

	items := make([]models.HistoryItem, len(candidates))
	for i, c := range candidates {
		items[i] = models.HistoryItem{
			Author: e.authorName(ctx, c),
			When:   e.FormatTime(c.CreatedAt),
			Text:   c.Text,
		}
	}

	dec := e.drafter.Draft(ctx, text, items)
	e.logger.Debug("Recap decision",
		zap.String("message_id", msg.ID),
		zap.Bool("duplicate", dec.Duplicate),
		zap.Float64("confidence", dec.Confidence))

	if !dec.Duplicate || dec.Confidence < e.cfg.MinConfidence || strings.TrimSpace(dec.Reply) == "" {
		return false
	}

	if err := reply(ctx, msg.ChatID, fmt.Sprintf("%s:\n%s", LeadIn, dec.Reply)); err != nil {
		e.logger.Error("Failed to post auto-answer", zap.String("chat_id", msg.ChatID), zap.Error(err))
		return false
	}

	e.logger.Info("Auto-answered repeated question",
		zap.String("chat_id", msg.ChatID),
		zap.String("message_id", msg.ID),
		zap.Float64("confidence", dec.Confidence))
	return true
}

// since is the start of the lookback window in epoch milliseconds.
func (e *Engine) since() int64 {
	return e.now().Add(-time.Duration(e.cfg.LookbackDays) * 24 * time.Hour).UnixMilli()
}

func (e *Engine) recall(ctx context.Context, msg models.Message, since int64) ([]models.Message, error) {
	recent, err := e.store.RecentInChat(ctx, msg.ChatID, since)
	if err != nil {
		return nil, err
	}

	out := make([]models.Message, 0, e.cfg.MaxCandidates)
	for _, m := range recent {
		if m.ID == msg.ID || strings.TrimSpace(m.Text) == "" {
			continue
		}
		out = append(out, m)
		if len(out) == e.cfg.MaxCandidates {
			break
		}
	}
	return out, nil
}

// narrow keeps the candidates most similar to the question, best first.
// Each match is followed by its newest thread replies, which often hold the
// answer while scoring low against the question themselves. Replies outside
// the lookback window and msg itself are skipped.
func (e *Engine) narrow(ctx context.Context, msg models.Message, question string, since int64, candidates []models.Message) []models.Message {
	if e.embedder == nil {
		return nil
	}
	query, err := e.embedder.Embed(ctx, question)
	if err != nil {
		e.logger.Warn("Question embedding failed", zap.Error(err))
		return nil
	}

	vectors := make([][]float32, len(candidates))
	for i, c := range candidates {
		vec, ok, err := e.store.GetVector(ctx, c.ID)
		if err != nil {
			e.logger.Warn("Vector lookup failed", zap.String("message_id", c.ID), zap.Error(err))
			continue
		}
		if ok {
			vectors[i] = vec
		}
	}

	scored := similarity.TopK(query, vectors, e.cfg.SemanticTopK, e.cfg.SemanticMinScore)
	kept := make(map[string]bool, len(scored)+1)
	kept[msg.ID] = true
	for _, s := range scored {
		kept[candidates[s.Index].ID] = true
	}

	out := make([]models.Message, 0, len(scored))
	for _, s := range scored {
		match := candidates[s.Index]
		out = append(out, match)

		replies, err := e.store.GetReplies(ctx, match.ID, threadReplies)
		if err != nil {
			e.logger.Warn("Thread lookup failed", zap.String("message_id", match.ID), zap.Error(err))
			continue
		}
		for _, r := range replies {
			if kept[r.ID] || r.CreatedAt < since || strings.TrimSpace(r.Text) == "" {
				continue
			}
			kept[r.ID] = true
			out = append(out, r)
		}
	}
	return out
}

func (e *Engine) authorName(ctx context.Context, m models.Message) string {
	if m.AuthorName != "" {
		return m.AuthorName
	}
	if e.names != nil && m.AuthorID != "" {
		if name := e.names.DisplayName(ctx, m.AuthorID, m.ChatID); name != "" {
			return name
		}
	}
	return "friend"
}

// FormatTime renders epoch milliseconds in the configured timezone.
func (e *Engine) FormatTime(ms int64) string {
	return time.UnixMilli(ms).In(e.cfg.Location).Format(TimeLayout)
}
