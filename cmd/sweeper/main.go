package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"cabanas/internal/config"
	"cabanas/internal/database"
	"cabanas/internal/notify"
	"cabanas/internal/pkg/logger"
	"cabanas/internal/pkg/metrics"
	"cabanas/internal/repository"
	"cabanas/internal/resilience"
	"cabanas/internal/worker"
)

// Standalone sweeper for deployments that run the API with the in-process
// sweeper disabled, or want the sweep cadence scaled separately. Running it
// next to the API's own sweeper is safe: every mutation is conditional.
func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatal(err)
	}

	log := logger.New(cfg.AppEnv)
	defer log.Sync()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	m := metrics.New()
	retrier := resilience.NewRetrier(cfg.NotifyRetries, log)
	breaker := resilience.NewBreaker(notify.BreakerName, resilience.BreakerConfig{
		FailureThreshold: cfg.BreakerFailures,
		Cooldown:         cfg.BreakerCooldown,
	}, m, log)

	var sender notify.Sender = notify.NoopSender{}
	if cfg.NotifyURL != "" {
		sender = notify.NewHTTPSender(cfg.NotifyURL, cfg.RequestTimeout, retrier, breaker)
	}

	sweeper := worker.NewSweeper(
		repository.NewReservationRepository(db),
		repository.NewIdempotencyRepository(db),
		notify.NewBestEffort(sender, log),
		m, log,
		worker.SweeperConfig{
			Interval:       cfg.SweepInterval,
			ReminderWindow: cfg.ReminderWindow,
			BatchSize:      cfg.SweepBatchSize,
		})
	sweeper.Start(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sweeper.Stop()
}
