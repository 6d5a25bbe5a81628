package ringcentral

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrNotAuthorized is returned while no access token has been installed.
var ErrNotAuthorized = errors.New("ringcentral: bot is not authorized yet")

// TokenStore holds the bot access token and persists it to a JSON file.
// It is an oauth2.TokenSource.
type TokenStore struct {
	path   string
	logger *zap.Logger

	mu    sync.RWMutex
	token *oauth2.Token
}

func NewTokenStore(path string, logger *zap.Logger) *TokenStore {
	return &TokenStore{path: path, logger: logger}
}

// Load restores a previously saved token. A missing file is not an error.
func (s *TokenStore) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("No saved token yet, waiting for OAuth install", zap.String("path", s.path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return fmt.Errorf("failed to parse token file: %w", err)
	}
	if tok.AccessToken == "" {
		return nil
	}

	s.mu.Lock()
	s.token = &tok
	s.mu.Unlock()

	s.logger.Info("Restored saved token", zap.String("path", s.path))
	return nil
}

// SaveToken installs a bot access token and writes it to disk.
// Bot tokens issued at install time do not expire, so no expiry is recorded.
func (s *TokenStore) SaveToken(accessToken string) error {
	if accessToken == "" {
		return fmt.Errorf("empty access token")
	}

	tok := &oauth2.Token{AccessToken: accessToken, TokenType: "bearer"}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create token dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()

	s.logger.Info("Token saved", zap.String("path", s.path))
	return nil
}

// Token implements oauth2.TokenSource.
func (s *TokenStore) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return nil, ErrNotAuthorized
	}
	tok := *s.token
	return &tok, nil
}

// Authorized reports whether a token is installed.
func (s *TokenStore) Authorized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != nil
}
