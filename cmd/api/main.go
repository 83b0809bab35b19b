package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cabanas/internal/config"
	"cabanas/internal/database"
	"cabanas/internal/lock"
	"cabanas/internal/middleware"
	"cabanas/internal/modules/accommodation"
	"cabanas/internal/modules/admin"
	"cabanas/internal/modules/payment"
	"cabanas/internal/modules/reservation"
	"cabanas/internal/notify"
	jwtsvc "cabanas/internal/pkg/jwt"
	"cabanas/internal/pkg/logger"
	"cabanas/internal/pkg/metrics"
	"cabanas/internal/repository"
	"cabanas/internal/resilience"
	"cabanas/internal/worker"
)

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

	redisClient, err := lock.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal("redis config invalid", zap.Error(err))
	}

	m := metrics.New()
	lockManager := lock.NewManager(redisClient, m)
	if err := lockManager.Ping(context.Background()); err != nil {
		// The API can start without Redis; creation requests will fail busy
		// (or proceed, if fail-open is configured) until it returns.
		log.Warn("redis unreachable at startup", zap.Error(err))
	}

	reservationRepo := repository.NewReservationRepository(db)
	accommodationRepo := repository.NewAccommodationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)
	adminUserRepo := repository.NewAdminUserRepository(db)

	retrier := resilience.NewRetrier(cfg.NotifyRetries, log)
	breaker := resilience.NewBreaker(notify.BreakerName, resilience.BreakerConfig{
		FailureThreshold: cfg.BreakerFailures,
		Cooldown:         cfg.BreakerCooldown,
	}, m, log)

	var sender notify.Sender = notify.NoopSender{}
	if cfg.NotifyURL != "" {
		sender = notify.NewHTTPSender(cfg.NotifyURL, cfg.RequestTimeout, retrier, breaker)
	}
	notifier := notify.NewBestEffort(sender, log)

	jwtService := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)

	reservationService := reservation.NewService(
		reservationRepo, accommodationRepo,
		reservation.RedisLocker{M: lockManager},
		notifier, m, log,
		reservation.Config{
			HoldWindow:     cfg.HoldWindow,
			LockTTL:        cfg.LockTTL,
			DepositPercent: cfg.DepositPercent,
			LockFailOpen:   cfg.LockFailOpen,
		})
	reservationHandler := reservation.NewHandler(reservationService)

	paymentService := payment.NewService(paymentRepo, reservationRepo, notifier, m, log)
	paymentHandler := payment.NewHandler(paymentService)

	accommodationService := accommodation.NewService(accommodationRepo)
	accommodationHandler := accommodation.NewHandler(accommodationService)

	adminService := admin.NewService(adminUserRepo, jwtService)
	adminHandler := admin.NewHandler(adminService)

	sweeper := worker.NewSweeper(reservationRepo, idempotencyRepo, notifier, m, log, worker.SweeperConfig{
		Interval:       cfg.SweepInterval,
		ReminderWindow: cfg.ReminderWindow,
		BatchSize:      cfg.SweepBatchSize,
	})

	if cfg.AppEnv == "prod" || cfg.AppEnv == "production" || cfg.AppEnv == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		// Critical mutations replay their cached response on retried delivery.
		v1.Use(middleware.Idempotency(idempotencyRepo, m, log, cfg.IdempotencyTTL,
			"/api/v1/reservations",
			"/api/v1/webhooks/payments",
		))

		// public
		reservationHandler.RegisterRoutes(v1)
		accommodationHandler.RegisterRoutes(v1)
		paymentHandler.RegisterRoutes(v1)
		adminHandler.RegisterRoutes(v1)

		// operator-only
		adminGroup := v1.Group("/admin")
		adminGroup.Use(middleware.JWTAuth(jwtService), middleware.RequireRole("admin"))
		{
			reservationHandler.RegisterAdminRoutes(adminGroup)
			accommodationHandler.RegisterAdminRoutes(adminGroup)
		}
	}

	sweeper.Start(context.Background())

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
	go func() {
		log.Info("api listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}
