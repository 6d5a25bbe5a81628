package handler

import (
	"context"
	"sync"
	"time"
)

// Tasks runs work after the HTTP response has been sent and lets shutdown
// wait for it.
type Tasks struct {
	ctx     context.Context
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewTasks creates a tracker whose jobs run under ctx, each bounded by timeout.
func NewTasks(ctx context.Context, timeout time.Duration) *Tasks {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Tasks{ctx: ctx, timeout: timeout}
}

func (t *Tasks) Go(fn func(ctx context.Context)) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(t.ctx, t.timeout)
		defer cancel()
		fn(ctx)
	}()
}

// Wait blocks until every started job has returned.
func (t *Tasks) Wait() {
	t.wg.Wait()
}
