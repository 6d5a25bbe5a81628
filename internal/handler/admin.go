package handler

import (
	"context"
	"errors"
	"net/http"

	"swampbot/internal/ringcentral"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Platform is the chat platform surface the admin endpoints use.
type Platform interface {
	ListChats(ctx context.Context) ([]ringcentral.Chat, error)
	CurrentExtension(ctx context.Context) (*ringcentral.Extension, error)
	CurrentPerson(ctx context.Context) (*ringcentral.Person, error)
	PostAdaptiveCard(ctx context.Context, chatID string, card map[string]any) error
}

// StoreStats reports message store health.
type StoreStats interface {
	Stats(ctx context.Context) (map[string]interface{}, error)
}

type AdminHandler interface {
	ListChats(c *gin.Context)
	BotIDs(c *gin.Context)
	PostTest(c *gin.Context)
	Store(c *gin.Context)
}

type adminHandler struct {
	platform Platform
	store    StoreStats
	botID    string
	logger   *zap.Logger
}

func NewAdminHandler(platform Platform, store StoreStats, botID string, logger *zap.Logger) AdminHandler {
	return &adminHandler{platform: platform, store: store, botID: botID, logger: logger}
}

func platformStatus(err error) int {
	if errors.Is(err, ringcentral.ErrNotAuthorized) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// ListChats handles GET /chats
func (h *adminHandler) ListChats(c *gin.Context) {
	chats, err := h.platform.ListChats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list chats", zap.Error(err))
		c.JSON(platformStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, chats)
}

// BotIDs handles GET /debug/bot-ids
func (h *adminHandler) BotIDs(c *gin.Context) {
	ext, err := h.platform.CurrentExtension(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to fetch bot extension", zap.Error(err))
		c.JSON(platformStatus(err), gin.H{"error": err.Error()})
		return
	}

	person := gin.H{"id": "", "name": ""}
	if me, err := h.platform.CurrentPerson(c.Request.Context()); err == nil {
		person = gin.H{"id": me.ID, "name": me.DisplayName()}
	} else {
		h.logger.Warn("Failed to fetch bot person", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"extension":  gin.H{"id": ext.IDString(), "name": ext.Name},
		"person":     person,
		"configured": h.botID,
		"notes": []string{
			"Use person.id as bot.id: it is matched against mentions and used to ignore the bot's own posts.",
			"extension.id is only a sanity check.",
		},
	})
}

type postTestRequest struct {
	ChatID string `json:"chatId" binding:"required"`
}

// AliveCard is the adaptive card posted by /post-test.
func AliveCard() map[string]any {
	return map[string]any{
		"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
		"type":    "AdaptiveCard",
		"version": "1.3",
		"body": []map[string]any{
			{"type": "TextBlock", "size": "Large", "weight": "Bolder", "text": "🤖🐊 SWAMPbot is alive!"},
			{"type": "TextBlock", "isSubtle": true, "text": "SWAMPbot is here to help you with your work day."},
		},
	}
}

// PostTest handles POST /post-test
func (h *adminHandler) PostTest(c *gin.Context) {
	var req postTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide { chatId }"})
		return
	}

	if err := h.platform.PostAdaptiveCard(c.Request.Context(), req.ChatID, AliveCard()); err != nil {
		h.logger.Error("Failed to post test card", zap.String("chat_id", req.ChatID), zap.Error(err))
		c.JSON(platformStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.String(http.StatusOK, "ok")
}

// Store handles GET /debug/store
func (h *adminHandler) Store(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read store stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read store stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
