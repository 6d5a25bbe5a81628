package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"swampbot/internal/ringcentral"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenSaver stores the bot access token.
type TokenSaver interface {
	SaveToken(accessToken string) error
}

// Subscriber registers the webhook with the platform.
type Subscriber interface {
	EnsureSubscription(ctx context.Context, webhookURL string) (*ringcentral.Subscription, error)
}

type OAuthHandler interface {
	Callback(c *gin.Context)
}

type oauthHandler struct {
	tokens     TokenSaver
	subscriber Subscriber
	webhookURL string
	tasks      *Tasks
	logger     *zap.Logger
}

func NewOAuthHandler(tokens TokenSaver, subscriber Subscriber, webhookURL string, tasks *Tasks, logger *zap.Logger) OAuthHandler {
	return &oauthHandler{tokens: tokens, subscriber: subscriber, webhookURL: webhookURL, tasks: tasks, logger: logger}
}

// Callback handles ANY /oauth, the bot install hook carrying the access token.
func (h *oauthHandler) Callback(c *gin.Context) {
	data, _ := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
	contentType := c.GetHeader("Content-Type")
	query := c.Request.URL.Query()
	c.Status(http.StatusOK)

	h.tasks.Go(func(ctx context.Context) {
		token := extractAccessToken(contentType, data, query)
		if token == "" {
			h.logger.Warn("OAuth hit without token")
			return
		}
		if err := h.tokens.SaveToken(token); err != nil {
			h.logger.Error("Failed to save token", zap.Error(err))
			return
		}
		if h.subscriber == nil || h.webhookURL == "" {
			h.logger.Warn("No webhook url configured, skipping subscription")
			return
		}
		if _, err := h.subscriber.EnsureSubscription(ctx, h.webhookURL); err != nil {
			h.logger.Error("Failed to ensure subscription", zap.Error(err))
		}
	})
}

func extractAccessToken(contentType string, body []byte, query url.Values) string {
	switch {
	case strings.Contains(contentType, "application/json"):
		var payload struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && payload.AccessToken != "" {
			return payload.AccessToken
		}
	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		if form, err := url.ParseQuery(string(body)); err == nil && form.Get("access_token") != "" {
			return form.Get("access_token")
		}
	}
	return query.Get("access_token")
}
