// Command paywebhookctl is the operator CLI for the webhook pipeline.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/boostmarket/paywebhook/internal/config"
	"github.com/boostmarket/paywebhook/internal/logging"
	"github.com/boostmarket/paywebhook/internal/replay"
	"github.com/boostmarket/paywebhook/internal/repository"
	"github.com/boostmarket/paywebhook/internal/service/reconcile"
	"github.com/boostmarket/paywebhook/internal/service/webhook"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "paywebhookctl",
		Short:         "Operate the payment webhook pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(cleanupCmd())
	rootCmd.AddCommand(eventsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// env holds what every subcommand needs. close must be called when done.
type env struct {
	cfg       *config.Config
	db        *sql.DB
	store     *webhook.EventStore
	scheduler *webhook.Scheduler
}

func (e *env) close() { e.db.Close() }

func openDB(ctx context.Context) (*config.Config, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logging.Init("paywebhookctl", cfg.LogLevel, "development")

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, db, nil
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, db, err := openDB(ctx)
	if err != nil {
		return nil, err
	}

	// Sweep progress goes to stdout as command output, not as log lines.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg.LogLevel == "debug" {
		logger = slog.Default()
	}

	events := repository.NewWebhookEventRepository(db)
	engine := reconcile.NewEngine(
		repository.NewBookingRepository(db),
		repository.NewPaymentRepository(db),
		repository.NewDB(db),
		logger,
	)
	guard := replay.NewGuard(events)
	store := webhook.NewEventStore(events, engine, guard, webhook.RetryPolicy{
		MaxAttempts: cfg.WebhookMaxAttempts,
		BaseDelay:   cfg.WebhookRetryBaseDelay,
		MaxDelay:    cfg.WebhookRetryMaxDelay,
	}, logger)

	return &env{
		cfg:   cfg,
		db:    db,
		store: store,
		scheduler: webhook.NewScheduler(store, webhook.SchedulerConfig{
			Interval:        cfg.WebhookSweepInterval,
			BatchSize:       cfg.WebhookSweepBatch,
			StaleClaimAfter: cfg.WebhookStaleClaimAfter,
			UnattemptedAge:  cfg.WebhookUnattemptedAge,
			RetentionDays:   cfg.WebhookRetentionDays,
		}, logger),
	}, nil
}
