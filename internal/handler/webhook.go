package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ValidationTokenHeader   = "Validation-Token"
	VerificationTokenHeader = "Verification-Token"
	maxWebhookBody          = 1 << 20
)

// EventProcessor handles a decoded webhook payload.
type EventProcessor interface {
	HandleEvent(ctx context.Context, raw map[string]any)
}

type WebhookHandler interface {
	Receive(c *gin.Context)
}

type webhookHandler struct {
	events            EventProcessor
	verificationToken string
	tasks             *Tasks
	logger            *zap.Logger
}

func NewWebhookHandler(events EventProcessor, verificationToken string, tasks *Tasks, logger *zap.Logger) WebhookHandler {
	return &webhookHandler{events: events, verificationToken: verificationToken, tasks: tasks, logger: logger}
}

// Receive handles POST /webhook. The platform gets its 200 before the event
// is processed.
func (h *webhookHandler) Receive(c *gin.Context) {
	if token := c.GetHeader(ValidationTokenHeader); token != "" {
		h.logger.Info("Webhook validation handshake")
		c.Header(ValidationTokenHeader, token)
		c.Status(http.StatusOK)
		return
	}

	if h.verificationToken != "" && c.GetHeader(VerificationTokenHeader) != h.verificationToken {
		h.logger.Warn("Webhook verification token mismatch", zap.String("remote", c.ClientIP()))
		c.Status(http.StatusUnauthorized)
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	c.Status(http.StatusOK)
	if err != nil {
		h.logger.Error("Failed to read webhook body", zap.Error(err))
		return
	}

	raw, err := decodeEvent(data)
	if err != nil {
		h.logger.Warn("Ignoring undecodable webhook body", zap.Error(err))
		return
	}

	h.tasks.Go(func(ctx context.Context) {
		h.events.HandleEvent(ctx, raw)
	})
}

// decodeEvent keeps numbers as json.Number so large ids survive intact.
func decodeEvent(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}
