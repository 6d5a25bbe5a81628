package service

import (
	"context"
	"regexp"
	"sync"
	"time"

	"swampbot/internal/commands"
	"swampbot/internal/models"
	"swampbot/internal/ringcentral"
	"swampbot/internal/webhook"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const (
	DefaultSeenTTL = 60 * time.Second
	seenCacheSize  = 10_000
)

// Poster sends posts to the chat platform.
type Poster interface {
	PostText(ctx context.Context, chatID, text string, opts ringcentral.PostOptions) error
}

// PeopleResolver resolves a post author's display name.
type PeopleResolver interface {
	Resolve(ctx context.Context, personID, chatID string, mentions []models.Mention) string
	Forget(chatID string)
}

// CommandHandler runs a chat command.
type CommandHandler interface {
	Handle(ctx context.Context, req *commands.Request) error
}

type BotConfig struct {
	BotID   string
	BotName string
	SeenTTL time.Duration
}

// Bot routes inbound post events: every post is indexed, posts addressed to
// the bot run commands, and the rest go through auto-answer.
type Bot struct {
	engine   *Engine
	commands CommandHandler
	poster   Poster
	people   PeopleResolver
	cfg      BotConfig
	name     *regexp.Regexp
	now      func() time.Time
	logger   *zap.Logger

	seenMu sync.Mutex
	seen   *expirable.LRU[string, struct{}]
}

func NewBot(engine *Engine, cmds CommandHandler, poster Poster, people PeopleResolver, cfg BotConfig, logger *zap.Logger) *Bot {
	if cfg.SeenTTL <= 0 {
		cfg.SeenTTL = DefaultSeenTTL
	}
	return &Bot{
		engine:   engine,
		commands: cmds,
		poster:   poster,
		people:   people,
		cfg:      cfg,
		name:     webhook.NamePattern(cfg.BotName),
		now:      time.Now,
		logger:   logger,
		seen:     expirable.NewLRU[string, struct{}](seenCacheSize, nil, cfg.SeenTTL),
	}
}

// seenRecently records id and reports whether it was already handled within the TTL.
func (b *Bot) seenRecently(id string) bool {
	if id == "" {
		return false
	}
	b.seenMu.Lock()
	defer b.seenMu.Unlock()
	if b.seen.Contains(id) {
		return true
	}
	b.seen.Add(id, struct{}{})
	return false
}

// HandleEvent processes one decoded webhook payload. Failures are logged.
func (b *Bot) HandleEvent(ctx context.Context, raw map[string]any) {
	body := webhook.Unwrap(raw)
	if chatID, ok := webhook.MembershipChatID(body); ok {
		if b.people != nil {
			b.people.Forget(chatID)
		}
		b.logger.Debug("Chat membership changed", zap.String("chat_id", chatID))
		return
	}
	if !webhook.IsPostEvent(body) {
		b.logger.Debug("Ignoring non-post event", zap.Any("event", body["event"]))
		return
	}

	post := webhook.Normalize(body, b.now())
	if b.seenRecently(post.ID) {
		b.logger.Debug("Duplicate delivery", zap.String("post_id", post.ID))
		return
	}
	if b.cfg.BotID != "" && post.CreatorID == b.cfg.BotID {
		return
	}

	if post.CreatorName == webhook.DefaultCreatorName && post.CreatorID != "" && b.people != nil {
		post.CreatorName = b.people.Resolve(ctx, post.CreatorID, post.ChatID, post.Mentions)
	}

	msg := post.Message()
	b.engine.Index(ctx, msg)

	if webhook.WasBotMentioned(post, b.cfg.BotID, b.name) {
		b.runCommand(ctx, post)
		return
	}
	if post.ChatType == webhook.ChatTypeDirect || post.CleanText == "" {
		return
	}

	b.engine.MaybeAutoReply(ctx, msg, func(ctx context.Context, chatID, text string) error {
		return b.poster.PostText(ctx, chatID, text, ringcentral.PostOptions{})
	})
}

func (b *Bot) runCommand(ctx context.Context, post models.Post) {
	req := &commands.Request{
		Text:        commands.ExtractCommandText(post.CleanText, b.name),
		ChatID:      post.ChatID,
		ChatType:    post.ChatType,
		CreatorID:   post.CreatorID,
		CreatorName: post.CreatorName,
		Mentions:    post.Mentions,
		Reply: func(ctx context.Context, text string, mentions ...models.Mention) error {
			return b.poster.PostText(ctx, post.ChatID, text, ringcentral.PostOptions{Mentions: mentions})
		},
	}

	if err := b.commands.Handle(ctx, req); err != nil {
		b.logger.Error("Failed to reply to command",
			zap.String("chat_id", post.ChatID),
			zap.String("post_id", post.ID),
			zap.Error(err))
	}
}
