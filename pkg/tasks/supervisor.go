// Package tasks runs fire-and-forget work off the request path on a bounded pool.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-support-be/internal/pkg/logger"
	"ai-support-be/internal/pkg/metrics"

	"github.com/panjf2000/ants/v2"
)

// Supervisor owns the lifetime of background tasks. Each task gets its own
// context, detached from the request that spawned it.
type Supervisor struct {
	pool    *ants.Pool
	timeout time.Duration
	logger  logger.ILogger
	wg      sync.WaitGroup
}

func NewSupervisor(size int, timeout time.Duration, log logger.ILogger) (*Supervisor, error) {
	if size < 1 {
		size = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pool, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create task pool: %w", err)
	}
	return &Supervisor{pool: pool, timeout: timeout, logger: log}, nil
}

// Go never blocks. When the pool is saturated the task is dropped and counted.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	err := s.pool.Submit(func() {
		defer s.wg.Done()
		s.run(name, fn)
	})
	if err != nil {
		s.wg.Done()
		metrics.BackgroundTasksTotal.WithLabelValues(name, "rejected").Inc()
		s.logger.Error("TASKS", "Background task rejected", map[string]interface{}{
			"task":  name,
			"error": err.Error(),
		})
	}
}

func (s *Supervisor) run(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			s.logger.Error("TASKS", "Background task panicked", map[string]interface{}{
				"task":  name,
				"panic": fmt.Sprint(r),
			})
		}
		metrics.BackgroundTasksTotal.WithLabelValues(name, outcome).Inc()
	}()

	if err := fn(ctx); err != nil {
		outcome = "error"
		s.logger.Error("TASKS", "Background task failed", map[string]interface{}{
			"task":  name,
			"error": err.Error(),
		})
	}
}

// Wait blocks until every submitted task has returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) Running() int {
	return s.pool.Running()
}

// Release waits for in-flight tasks, then frees the pool.
func (s *Supervisor) Release() {
	s.wg.Wait()
	s.pool.Release()
}
