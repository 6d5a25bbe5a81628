package repository

import (
	"context"
	"sync"
	"time"

	"swampbot/internal/models"

	"go.uber.org/zap"
)

// StoreConfig tunes the batched write queue.
type StoreConfig struct {
	FlushInterval time.Duration
	MaxBatch      int
	MaxQueue      int
}

// HistoryStore is the message log used by auto-answer. Writes are queued and
// flushed in batches by Run; reads go straight to the repository and only see
// flushed rows.
type HistoryStore struct {
	repo   MessageRepository
	cfg    StoreConfig
	logger *zap.Logger

	mu    sync.Mutex
	queue []PendingWrite
	shed  int
}

func NewHistoryStore(repo MessageRepository, cfg StoreConfig, logger *zap.Logger) *HistoryStore {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 120 * time.Millisecond
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 25
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 1000
	}

	return &HistoryStore{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
	}
}

// AddMessage queues an upsert of msg and its vector. It never blocks on I/O.
// When the queue is full the oldest half of the backlog is dropped.
func (s *HistoryStore) AddMessage(msg models.Message, vector []float32) {
	if len(vector) == 0 {
		vector = models.ZeroVector()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) >= s.cfg.MaxQueue {
		drop := len(s.queue) / 2
		s.queue = append(s.queue[:0], s.queue[drop:]...)
		s.shed += drop
		s.logger.Warn("History write queue full, shedding oldest writes",
			zap.Int("dropped", drop),
			zap.Int("remaining", len(s.queue)))
	}

	s.queue = append(s.queue, PendingWrite{Message: msg, Vector: vector})
}

// QueueDepth reports the number of writes not yet flushed.
func (s *HistoryStore) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Shed reports how many queued writes were dropped under overload.
func (s *HistoryStore) Shed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shed
}

func (s *HistoryStore) take(n int) []PendingWrite {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n > len(s.queue) {
		n = len(s.queue)
	}
	if n == 0 {
		return nil
	}

	batch := make([]PendingWrite, n)
	copy(batch, s.queue[:n])
	s.queue = append(s.queue[:0], s.queue[n:]...)
	return batch
}

// flushBatch writes at most one batch. A failed batch is logged and discarded.
func (s *HistoryStore) flushBatch(ctx context.Context) int {
	batch := s.take(s.cfg.MaxBatch)
	if len(batch) == 0 {
		return 0
	}

	if err := s.repo.UpsertBatch(ctx, batch); err != nil {
		s.logger.Error("DB batch insert failed", zap.Int("batch_size", len(batch)), zap.Error(err))
	}
	return len(batch)
}

// Flush drains the whole queue now.
func (s *HistoryStore) Flush(ctx context.Context) {
	for s.flushBatch(ctx) > 0 {
	}
}

// Run flushes one batch per tick until ctx is cancelled, then drains the queue.
func (s *HistoryStore) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush(context.Background())
			s.logger.Info("History store flusher stopped")
			return
		case <-ticker.C:
			s.flushBatch(ctx)
		}
	}
}

// RecentInChat returns flushed messages of chatID created at or after sinceMs,
// newest first, capped at MaxRecentMessages.
func (s *HistoryStore) RecentInChat(ctx context.Context, chatID string, sinceMs int64) ([]models.Message, error) {
	return s.repo.RecentInChat(ctx, chatID, sinceMs, MaxRecentMessages)
}

func (s *HistoryStore) GetVector(ctx context.Context, id string) ([]float32, bool, error) {
	return s.repo.GetVector(ctx, id)
}

func (s *HistoryStore) GetReplies(ctx context.Context, parentID string, limit int) ([]models.Message, error) {
	return s.repo.GetReplies(ctx, parentID, limit)
}

// Stats summarizes store state for the admin endpoint.
func (s *HistoryStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	total, err := s.repo.CountMessages(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"messages":    total,
		"queue_depth": s.QueueDepth(),
		"shed":        s.Shed(),
	}, nil
}
