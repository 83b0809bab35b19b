package main

import (
	"context"
	"errors"
	stdlog "log"
	"os"

	"go.uber.org/zap"

	"cabanas/internal/config"
	"cabanas/internal/database"
	"cabanas/internal/domain"
	"cabanas/internal/modules/admin"
	jwtsvc "cabanas/internal/pkg/jwt"
	"cabanas/internal/pkg/logger"
	"cabanas/internal/repository"
)

// Seeds a few accommodations and one admin account for local development.
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

	ctx := context.Background()
	accRepo := repository.NewAccommodationRepository(db)

	accommodations := []domain.Accommodation{
		{
			Name:              "Cabana del Bosque",
			Type:              domain.AccommodationCabin,
			Capacity:          4,
			BasePrice:         100,
			WeekendMultiplier: 1.2,
			Description:       "Two-bedroom cabin with lake view",
			Active:            true,
		},
		{
			Name:              "Cabana del Lago",
			Type:              domain.AccommodationCabin,
			Capacity:          6,
			BasePrice:         150,
			WeekendMultiplier: 1.3,
			Description:       "Family cabin, private pier",
			Active:            true,
		},
		{
			Name:              "Depto Centro",
			Type:              domain.AccommodationApartment,
			Capacity:          2,
			BasePrice:         70,
			WeekendMultiplier: 1.2,
			Description:       "Downtown studio apartment",
			Active:            true,
		},
	}
	for i := range accommodations {
		var cnt int64
		db.Model(&domain.Accommodation{}).Where("name = ?", accommodations[i].Name).Count(&cnt)
		if cnt > 0 {
			continue
		}
		if err := accRepo.Create(ctx, &accommodations[i]); err != nil {
			log.Fatal("seed accommodation failed", zap.Error(err))
		}
		log.Info("seeded accommodation", zap.String("name", accommodations[i].Name))
	}

	email := os.Getenv("SEED_ADMIN_EMAIL")
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Info("SEED_ADMIN_EMAIL/SEED_ADMIN_PASSWORD not set, skipping admin seed")
		return
	}

	adminService := admin.NewService(
		repository.NewAdminUserRepository(db),
		jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL),
	)
	if _, err := adminService.Register(ctx, email, password); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			log.Info("admin already exists", zap.String("email", email))
			return
		}
		log.Fatal("seed admin failed", zap.Error(err))
	}
	log.Info("seeded admin", zap.String("email", email))
}
