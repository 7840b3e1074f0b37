package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/boostmarket/paywebhook/internal/config"
	"github.com/boostmarket/paywebhook/internal/handler"
	"github.com/boostmarket/paywebhook/internal/logging"
	"github.com/boostmarket/paywebhook/internal/replay"
	"github.com/boostmarket/paywebhook/internal/repository"
	"github.com/boostmarket/paywebhook/internal/router"
	"github.com/boostmarket/paywebhook/internal/service/reconcile"
	"github.com/boostmarket/paywebhook/internal/service/webhook"
	"github.com/boostmarket/paywebhook/internal/signature"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Init("paywebhook-api", cfg.LogLevel, cfg.AppEnv)

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

	if err := repository.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	checks := map[string]handler.Pinger{"database": db}
	guardOpts := []replay.Option{replay.WithWindow(cfg.ReplayMaxAge, cfg.ReplayClockSkew)}

	if cfg.RedisURL != "" {
		rdb, err := replay.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		guardOpts = append(guardOpts, replay.WithCache(replay.NewRedisCache(rdb, cfg.ReplayCacheTTL)))
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		logger.Info("REDIS_URL not set, replay cache disabled")
	}

	events := repository.NewWebhookEventRepository(db)
	engine := reconcile.NewEngine(
		repository.NewBookingRepository(db),
		repository.NewPaymentRepository(db),
		repository.NewDB(db),
		logger,
	)
	guard := replay.NewGuard(events, guardOpts...)
	store := webhook.NewEventStore(events, engine, guard, webhook.RetryPolicy{
		MaxAttempts: cfg.WebhookMaxAttempts,
		BaseDelay:   cfg.WebhookRetryBaseDelay,
		MaxDelay:    cfg.WebhookRetryMaxDelay,
	}, logger)
	scheduler := webhook.NewScheduler(store, webhook.SchedulerConfig{
		Interval:        cfg.WebhookSweepInterval,
		BatchSize:       cfg.WebhookSweepBatch,
		StaleClaimAfter: cfg.WebhookStaleClaimAfter,
		UnattemptedAge:  cfg.WebhookUnattemptedAge,
		RetentionDays:   cfg.WebhookRetentionDays,
	}, logger)

	if cfg.CronSecret == "" {
		logger.Warn("CRON_SECRET not set, cron endpoints will reject every request")
	}
	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN not set, admin endpoints will reject every request")
	}

	verifiers := signature.NewSet(signature.Secrets{
		MoMoAccessKey:   cfg.MoMoAccessKey,
		MoMoSecretKey:   cfg.MoMoSecretKey,
		VNPayHashSecret: cfg.VNPayHashSecret,
		ZaloPayKey2:     cfg.ZaloPayKey2,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: router.New(router.Deps{
			Logger:     logger,
			Health:     handler.NewHealthHandler(checks),
			Webhooks:   handler.NewWebhookHandler(verifiers, guard, store, cfg.SyncProcessTimeout),
			Admin:      handler.NewAdminHandler(store),
			Cron:       handler.NewCronHandler(scheduler),
			AdminToken: cfg.AdminToken,
			CronSecret: cfg.CronSecret,
		}),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	if cfg.SchedulerEnabled {
		g.Go(func() error {
			scheduler.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
