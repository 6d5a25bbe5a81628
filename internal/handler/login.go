package handler

import (
	"net/http"
	"time"

	"swampbot/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LoginHandler interface {
	Login(c *gin.Context)
}

type loginHandler struct {
	passwordHash string
	secret       []byte
	ttl          time.Duration
	logger       *zap.Logger
}

// NewLoginHandler exchanges the admin password for a signed admin token.
func NewLoginHandler(passwordHash, jwtSecret string, ttl time.Duration, logger *zap.Logger) LoginHandler {
	return &loginHandler{passwordHash: passwordHash, secret: []byte(jwtSecret), ttl: ttl, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /login
func (h *loginHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	ok, err := middleware.VerifyPassword(h.passwordHash, req.Password)
	if err != nil {
		h.logger.Error("Admin password hash is unusable", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login is misconfigured"})
		return
	}
	if !ok {
		h.logger.Warn("Rejected admin login", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	subject := req.Username
	if subject == "" {
		subject = "admin"
	}
	token, err := middleware.IssueAdminToken(h.secret, subject, h.ttl)
	if err != nil {
		h.logger.Error("Failed to issue admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	h.logger.Info("Admin logged in", zap.String("subject", subject))
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": time.Now().Add(h.ttl).UTC().Format(time.RFC3339),
	})
}
