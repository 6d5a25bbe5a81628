package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"swampbot/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// MaxRecentMessages caps a single recency query.
const MaxRecentMessages = 1000

// PendingWrite is a message row and its vector awaiting a batched insert.
type PendingWrite struct {
	Message models.Message
	Vector  []float32
}

type MessageRepository interface {
	UpsertBatch(ctx context.Context, batch []PendingWrite) error
	RecentInChat(ctx context.Context, chatID string, sinceMs int64, limit int) ([]models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	GetVector(ctx context.Context, id string) ([]float32, bool, error)
	GetReplies(ctx context.Context, parentID string, limit int) ([]models.Message, error)
	CountMessages(ctx context.Context) (int, error)
}

type messageRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMessageRepository(db *sqlx.DB, logger *zap.Logger) MessageRepository {
	return &messageRepository{db: db, logger: logger}
}

const selectMessage = `SELECT id, chat_id, COALESCE(author_id, '') AS author_id,
	COALESCE(author_name, '') AS author_name, created_at, text,
	COALESCE(parent_id, '') AS parent_id FROM messages`

// UpsertBatch writes every message and vector of the batch in one transaction.
// Re-ingesting an id replaces the earlier row.
func (r *messageRepository) UpsertBatch(ctx context.Context, batch []PendingWrite) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	defer tx.Rollback()

	msgStmt, err := tx.PreparexContext(ctx, `INSERT OR REPLACE INTO messages
		(id, chat_id, author_id, author_name, created_at, text, parent_id)
		VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, NULLIF(?, ''))`)
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer msgStmt.Close()

	vecStmt, err := tx.PreparexContext(ctx, `INSERT OR REPLACE INTO vectors (id, embedding) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare vector insert: %w", err)
	}
	defer vecStmt.Close()

	for _, w := range batch {
		m := w.Message
		if _, err := msgStmt.ExecContext(ctx, m.ID, m.ChatID, m.AuthorID, m.AuthorName, m.CreatedAt, m.Text, m.ParentID); err != nil {
			return fmt.Errorf("failed to save message %s: %w", m.ID, err)
		}
		if _, err := vecStmt.ExecContext(ctx, m.ID, EncodeVector(w.Vector)); err != nil {
			return fmt.Errorf("failed to save vector %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// RecentInChat returns messages of a chat created at or after sinceMs, newest first.
func (r *messageRepository) RecentInChat(ctx context.Context, chatID string, sinceMs int64, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > MaxRecentMessages {
		limit = MaxRecentMessages
	}

	var msgs []models.Message
	query := selectMessage + ` WHERE chat_id = ? AND created_at >= ? ORDER BY created_at DESC, id DESC LIMIT ?`
	if err := r.db.SelectContext(ctx, &msgs, query, chatID, sinceMs, limit); err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	return msgs, nil
}

func (r *messageRepository) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, selectMessage+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

// GetVector returns the stored embedding for a message id, if any.
func (r *messageRepository) GetVector(ctx context.Context, id string) ([]float32, bool, error) {
	var blob []byte
	err := r.db.QueryRowxContext(ctx, `SELECT embedding FROM vectors WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get vector: %w", err)
	}

	vec, err := DecodeVector(blob)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// GetReplies returns the newest thread replies to parentID.
func (r *messageRepository) GetReplies(ctx context.Context, parentID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	var msgs []models.Message
	query := selectMessage + ` WHERE parent_id = ? ORDER BY created_at DESC LIMIT ?`
	if err := r.db.SelectContext(ctx, &msgs, query, parentID, limit); err != nil {
		return nil, fmt.Errorf("failed to query replies: %w", err)
	}
	return msgs, nil
}

func (r *messageRepository) CountMessages(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM messages`); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}
