// Package scheduler runs background maintenance over executions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/convohq/playbook/internal/store"
)

// Sweeper periodically abandons executions whose conversations went quiet.
// Visitors close tabs without saying goodbye; without the sweep their
// executions would hold the conversation's active slot forever.
type Sweeper struct {
	executions store.ExecutionStore
	idleAfter  time.Duration
	cronSpec   string
	logger     *slog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewSweeper creates a Sweeper. cronSpec is a standard 5-field cron
// expression; idleAfter is how long an execution may sit without activity
// before it is abandoned.
func NewSweeper(executions store.ExecutionStore, cronSpec string, idleAfter time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		executions: executions,
		idleAfter:  idleAfter,
		cronSpec:   cronSpec,
		logger:     logger,
	}
}

// Start schedules the sweep and runs an initial pass immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}

	sweepCtx, cancel := context.WithCancel(ctx)

	c := cron.New()
	if _, err := c.AddFunc(s.cronSpec, func() { s.Sweep(sweepCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule sweep %q: %w", s.cronSpec, err)
	}

	s.cron = c
	s.cancel = cancel
	c.Start()

	go s.Sweep(sweepCtx)

	s.logger.Info("abandonment sweeper started",
		slog.String("schedule", s.cronSpec),
		slog.Duration("idle_after", s.idleAfter))
	return nil
}

// Sweep abandons all active executions idle for longer than idleAfter.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.idleAfter)
	swept, err := s.executions.AbandonStale(ctx, cutoff)
	if err != nil {
		s.logger.Error("abandonment sweep failed", slog.String("error", err.Error()))
		return
	}
	if swept > 0 {
		s.logger.Info("abandoned stale executions", slog.Int64("count", swept))
	}
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.cancel()
	s.cron = nil
	s.cancel = nil

	s.logger.Info("abandonment sweeper stopped")
}
