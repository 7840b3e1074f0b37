package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`

	// Gateway secrets. Empty values are allowed: verification still runs and fails.
	MoMoAccessKey   string `env:"MOMO_ACCESS_KEY"`
	MoMoSecretKey   string `env:"MOMO_SECRET_KEY"`
	VNPayHashSecret string `env:"VNPAY_HASH_SECRET"`
	ZaloPayKey2     string `env:"ZALOPAY_KEY2"`

	ReplayMaxAge    time.Duration `env:"REPLAY_MAX_AGE" envDefault:"5m"`
	ReplayClockSkew time.Duration `env:"REPLAY_CLOCK_SKEW" envDefault:"60s"`
	ReplayCacheTTL  time.Duration `env:"REPLAY_CACHE_TTL" envDefault:"24h"`

	WebhookMaxAttempts     int           `env:"WEBHOOK_MAX_ATTEMPTS" envDefault:"5"`
	WebhookRetryBaseDelay  time.Duration `env:"WEBHOOK_RETRY_BASE_DELAY" envDefault:"30s"`
	WebhookRetryMaxDelay   time.Duration `env:"WEBHOOK_RETRY_MAX_DELAY" envDefault:"1h"`
	WebhookSweepInterval   time.Duration `env:"WEBHOOK_SWEEP_INTERVAL" envDefault:"1m"`
	WebhookSweepBatch      int           `env:"WEBHOOK_SWEEP_BATCH" envDefault:"50"`
	WebhookStaleClaimAfter time.Duration `env:"WEBHOOK_STALE_CLAIM_AFTER" envDefault:"10m"`
	WebhookUnattemptedAge  time.Duration `env:"WEBHOOK_UNATTEMPTED_AGE" envDefault:"30s"`
	WebhookRetentionDays   int           `env:"WEBHOOK_RETENTION_DAYS" envDefault:"90"`
	SyncProcessTimeout     time.Duration `env:"SYNC_PROCESS_TIMEOUT" envDefault:"3s"`

	// In-process sweep loop. Disable when an external cron or the asynq worker drives sweeps.
	SchedulerEnabled bool `env:"SCHEDULER_ENABLED" envDefault:"true"`

	RedisURL   string `env:"REDIS_URL"`
	CronSecret string `env:"CRON_SECRET"`
	AdminToken string `env:"ADMIN_TOKEN"`

	// cmd/worker only.
	WorkerConcurrency  int    `env:"WORKER_CONCURRENCY" envDefault:"2"`
	WebhookCleanupCron string `env:"WEBHOOK_CLEANUP_CRON" envDefault:"0 3 * * *"`
}

// Load reads an optional .env file and then parses the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: dotenv: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.WebhookMaxAttempts < 1 {
		return nil, fmt.Errorf("config.Load: WEBHOOK_MAX_ATTEMPTS must be at least 1")
	}
	return &cfg, nil
}
