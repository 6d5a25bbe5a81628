package handler

import (
	"net/http"

	"swampbot/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Routes bundles the handlers mounted on the HTTP server.
type Routes struct {
	Webhook   WebhookHandler
	OAuth     OAuthHandler
	Admin     AdminHandler
	Login     LoginHandler
	JWTSecret string
}

// RegisterRoutes mounts the bot endpoints. Admin endpoints require a JWT
// when a secret is configured.
func RegisterRoutes(r *gin.Engine, routes Routes, logger *zap.Logger) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/webhook", routes.Webhook.Receive)
	r.Any("/oauth", routes.OAuth.Callback)
	if routes.Login != nil {
		r.POST("/login", routes.Login.Login)
	}

	admin := r.Group("/")
	if routes.JWTSecret != "" {
		admin.Use(middleware.AuthMiddleware([]byte(routes.JWTSecret), logger))
	} else {
		logger.Warn("admin.jwt_secret is empty, admin endpoints are unauthenticated")
	}
	{
		admin.GET("/chats", routes.Admin.ListChats)
		admin.GET("/debug/bot-ids", routes.Admin.BotIDs)
		admin.GET("/debug/store", routes.Admin.Store)
		admin.POST("/post-test", routes.Admin.PostTest)
	}
}
