package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHoldWindow      = "30m"
	defaultLockTTL         = "30m"
	defaultSweepInterval   = "60s"
	defaultReminderWindow  = "15m"
	defaultIdempotencyTTL  = "48h"
	defaultRequestTimeout  = "5s"
	defaultJWTTTL          = "24h"
	defaultSweepBatchSize  = "200"
	defaultDepositPercent  = "30"
	defaultJWTSecret       = "change-me-jwt-secret"
	defaultNotifyRetries   = "3"
	defaultBreakerFailures = "5"
	defaultBreakerCooldown = "60s"
)

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	// Hold window applied to new pre-reservations and to a single extension.
	HoldWindow time.Duration
	LockTTL    time.Duration
	// LockFailOpen lets reservation creation proceed on a lock-store outage,
	// relying only on the storage exclusion constraint. Off by default.
	LockFailOpen   bool
	DepositPercent int

	SweepInterval  time.Duration
	ReminderWindow time.Duration
	SweepBatchSize int

	IdempotencyTTL time.Duration

	RequestTimeout  time.Duration
	NotifyURL       string
	NotifyRetries   int
	BreakerFailures int
	BreakerCooldown time.Duration

	JWTSecret string
	JWTTTL    time.Duration
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.Port = getEnv("PORT", "8080")
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.RedisURL = getEnv("REDIS_URL", "redis://localhost:6379/0")
	cfg.NotifyURL = strings.TrimSpace(os.Getenv("NOTIFY_URL"))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.LockFailOpen = parseBoolEnv("LOCK_FAIL_OPEN", "false")

	var err error
	if cfg.HoldWindow, err = parseDurationEnv("HOLD_WINDOW", defaultHoldWindow); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = parseDurationEnv("LOCK_TTL", defaultLockTTL); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = parseDurationEnv("SWEEP_INTERVAL", defaultSweepInterval); err != nil {
		return nil, err
	}
	if cfg.ReminderWindow, err = parseDurationEnv("REMINDER_WINDOW", defaultReminderWindow); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = parseDurationEnv("REQUEST_TIMEOUT", defaultRequestTimeout); err != nil {
		return nil, err
	}
	if cfg.BreakerCooldown, err = parseDurationEnv("BREAKER_COOLDOWN", defaultBreakerCooldown); err != nil {
		return nil, err
	}
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", defaultJWTTTL); err != nil {
		return nil, err
	}
	if cfg.SweepBatchSize, err = parseIntEnv("SWEEP_BATCH_SIZE", defaultSweepBatchSize); err != nil {
		return nil, err
	}
	if cfg.DepositPercent, err = parseIntEnv("DEPOSIT_PERCENT", defaultDepositPercent); err != nil {
		return nil, err
	}
	if cfg.NotifyRetries, err = parseIntEnv("NOTIFY_RETRIES", defaultNotifyRetries); err != nil {
		return nil, err
	}
	if cfg.BreakerFailures, err = parseIntEnv("BREAKER_FAILURES", defaultBreakerFailures); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.HoldWindow <= 0 {
		return fmt.Errorf("HOLD_WINDOW must be > 0")
	}
	if cfg.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be > 0")
	}
	if cfg.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	if cfg.SweepBatchSize <= 0 {
		return fmt.Errorf("SWEEP_BATCH_SIZE must be > 0")
	}
	if cfg.DepositPercent <= 0 || cfg.DepositPercent > 100 {
		return fmt.Errorf("DEPOSIT_PERCENT must be between 1 and 100")
	}
	if isProdLike(cfg.AppEnv) {
		if cfg.JWTSecret == "" || cfg.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if cfg.LockFailOpen {
			// Allowed, but it is a deliberate degraded-safety choice; make the
			// operator spell it out together with the environment.
			if !parseBoolEnv("LOCK_FAIL_OPEN_ACK", "false") {
				return fmt.Errorf("LOCK_FAIL_OPEN=true in prod requires LOCK_FAIL_OPEN_ACK=true")
			}
		}
	}
	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
