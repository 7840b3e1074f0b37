package webhook

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/boostmarket/paywebhook/internal/domain"
)

type sweeper interface {
	Process(ctx context.Context, id uuid.UUID) (bool, error)
	Due(ctx context.Context, unattemptedAge time.Duration, limit int) ([]domain.WebhookEvent, error)
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error)
	Cleanup(ctx context.Context, daysOld int) (int64, error)
}

type SchedulerConfig struct {
	Interval        time.Duration
	BatchSize       int
	StaleClaimAfter time.Duration
	UnattemptedAge  time.Duration
	RetentionDays   int
}

type SweepResult struct {
	Released  int64 `json:"released"`
	Claimed   int   `json:"claimed"`
	Completed int   `json:"completed"`
	Failed    int   `json:"failed"`
	// Skipped counts due events another worker claimed first.
	Skipped   int   `json:"skipped"`
}

// Scheduler sweeps the event store for events that still need processing.
// Every entry point is safe to call concurrently from several invokers.
type Scheduler struct {
	store  sweeper
	cfg    SchedulerConfig
	logger *slog.Logger
}

func NewScheduler(store sweeper, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{store: store, cfg: cfg, logger: logger}
}

// ProcessPending runs one sweep, oldest events first.
func (s *Scheduler) ProcessPending(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	released, err := s.store.ReleaseStale(ctx, s.cfg.StaleClaimAfter)
	if err != nil {
		return res, err
	}
	res.Released = released

	events, err := s.store.Due(ctx, s.cfg.UnattemptedAge, s.cfg.BatchSize)
	if err != nil {
		return res, err
	}

	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		completed, err := s.store.Process(ctx, event.ID)
		switch {
		case err != nil:
			res.Claimed++
			res.Failed++
		case completed:
			res.Claimed++
			res.Completed++
		default:
			res.Skipped++
		}
	}

	if res.Claimed > 0 || res.Released > 0 || res.Skipped > 0 {
		s.logger.Info("webhook sweep finished",
			"released", res.Released,
			"claimed", res.Claimed,
			"completed", res.Completed,
			"failed", res.Failed,
			"skipped", res.Skipped,
		)
	}
	return res, nil
}

func (s *Scheduler) Cleanup(ctx context.Context) (int64, error) {
	return s.store.Cleanup(ctx, s.cfg.RetentionDays)
}

// Start sweeps on every tick until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("webhook scheduler started", "interval", s.cfg.Interval)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("webhook scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.ProcessPending(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("webhook sweep failed", "error", err)
			}
		}
	}
}
