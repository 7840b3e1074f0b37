package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/boostmarket/paywebhook/internal/config"
	"github.com/boostmarket/paywebhook/internal/logging"
	"github.com/boostmarket/paywebhook/internal/replay"
	"github.com/boostmarket/paywebhook/internal/repository"
	"github.com/boostmarket/paywebhook/internal/service/reconcile"
	"github.com/boostmarket/paywebhook/internal/service/webhook"
	"github.com/boostmarket/paywebhook/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Init("paywebhook-worker", cfg.LogLevel, cfg.AppEnv)

	if cfg.RedisURL == "" {
		return errors.New("REDIS_URL is required for the worker")
	}
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	rdb, err := replay.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	events := repository.NewWebhookEventRepository(db)
	engine := reconcile.NewEngine(
		repository.NewBookingRepository(db),
		repository.NewPaymentRepository(db),
		repository.NewDB(db),
		logger,
	)
	guard := replay.NewGuard(events,
		replay.WithWindow(cfg.ReplayMaxAge, cfg.ReplayClockSkew),
		replay.WithCache(replay.NewRedisCache(rdb, cfg.ReplayCacheTTL)),
	)
	store := webhook.NewEventStore(events, engine, guard, webhook.RetryPolicy{
		MaxAttempts: cfg.WebhookMaxAttempts,
		BaseDelay:   cfg.WebhookRetryBaseDelay,
		MaxDelay:    cfg.WebhookRetryMaxDelay,
	}, logger)
	sweeps := webhook.NewScheduler(store, webhook.SchedulerConfig{
		Interval:        cfg.WebhookSweepInterval,
		BatchSize:       cfg.WebhookSweepBatch,
		StaleClaimAfter: cfg.WebhookStaleClaimAfter,
		UnattemptedAge:  cfg.WebhookUnattemptedAge,
		RetentionDays:   cfg.WebhookRetentionDays,
	}, logger)

	mux := asynq.NewServeMux()
	worker.NewWorker(sweeps, logger).Register(mux)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{"default": 1},
	})
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	defer srv.Shutdown()

	scheduler := asynq.NewScheduler(redisOpt, nil)
	if err := worker.Schedule(scheduler, cfg.WebhookSweepInterval, cfg.WebhookCleanupCron); err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start asynq scheduler: %w", err)
	}
	defer scheduler.Shutdown()

	logger.Info("worker started",
		"concurrency", cfg.WorkerConcurrency,
		"sweep_interval", cfg.WebhookSweepInterval,
		"cleanup_cron", cfg.WebhookCleanupCron,
	)

	<-ctx.Done()
	logger.Info("shutting down worker")
	return nil
}
