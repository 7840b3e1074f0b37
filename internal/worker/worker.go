// Package worker runs webhook sweeps as asynq tasks so several processes can
// share one schedule through Redis.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/boostmarket/paywebhook/internal/service/webhook"
)

// Task names.
const (
	TaskProcessPending = "webhooks:process_pending"
	TaskCleanup        = "webhooks:cleanup"
)

type (
	// Worker handles the periodic webhook tasks.
	Worker struct {
		sweeper sweeper
		logger  *slog.Logger
	}

	sweeper interface {
		ProcessPending(ctx context.Context) (webhook.SweepResult, error)
		Cleanup(ctx context.Context) (int64, error)
	}

	registrar interface {
		Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
	}
)

func NewWorker(s sweeper, logger *slog.Logger) *Worker {
	return &Worker{sweeper: s, logger: logger}
}

// Register registers the task handlers on mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskProcessPending, w.ProcessPending)
	mux.HandleFunc(TaskCleanup, w.Cleanup)
}

func (w *Worker) ProcessPending(ctx context.Context, _ *asynq.Task) error {
	res, err := w.sweeper.ProcessPending(ctx)
	if err != nil {
		return fmt.Errorf("worker: process pending: %w", err)
	}
	w.logger.Debug("process pending task done", "claimed", res.Claimed, "completed", res.Completed)
	return nil
}

func (w *Worker) Cleanup(ctx context.Context, _ *asynq.Task) error {
	deleted, err := w.sweeper.Cleanup(ctx)
	if err != nil {
		return fmt.Errorf("worker: cleanup: %w", err)
	}
	w.logger.Info("webhook cleanup task done", "deleted", deleted)
	return nil
}

// Schedule registers both periodic tasks. A missed sweep is never retried by
// asynq; the next tick covers it.
func Schedule(s registrar, sweepEvery time.Duration, cleanupCron string) error {
	if sweepEvery <= 0 {
		return fmt.Errorf("worker: sweep interval must be positive, got %s", sweepEvery)
	}

	if _, err := s.Register(
		"@every "+sweepEvery.String(),
		asynq.NewTask(TaskProcessPending, nil),
		asynq.MaxRetry(0),
		asynq.Timeout(sweepEvery),
	); err != nil {
		return fmt.Errorf("worker: register %s: %w", TaskProcessPending, err)
	}

	if _, err := s.Register(
		cleanupCron,
		asynq.NewTask(TaskCleanup, nil),
		asynq.MaxRetry(1),
	); err != nil {
		return fmt.Errorf("worker: register %s: %w", TaskCleanup, err)
	}
	return nil
}
