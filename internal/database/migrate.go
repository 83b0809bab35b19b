package database

import (
	"fmt"

	"gorm.io/gorm"

	"cabanas/internal/domain"
)

// Migrate creates the schema and, on PostgreSQL, installs the range-exclusion
// constraint that is the ultimate double-booking guard. The constraint rejects
// any insert/update producing two rows for the same accommodation whose
// half-open [check_in, check_out) ranges overlap while both rows are in an
// active status. On SQLite the repository emulates the guard inside a single
// write transaction instead (see ReservationRepository.Create).
func Migrate(db *gorm.DB) error {
	models := []interface{}{
		&domain.Accommodation{},
		&domain.Reservation{},
		&domain.Payment{},
		&domain.IdempotencyRecord{},
		&domain.AdminUser{},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("migrate %T: %w", m, err)
		}
	}

	if !IsPostgres(db) {
		return nil
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS btree_gist`,
		`ALTER TABLE reservations DROP CONSTRAINT IF EXISTS excl_reservation_overlap`,
		`ALTER TABLE reservations ADD CONSTRAINT excl_reservation_overlap
			EXCLUDE USING gist (
				accommodation_id WITH =,
				daterange(check_in, check_out, '[)') WITH &&
			)
			WHERE (reservation_status IN ('pre_reserved', 'confirmed'))`,
		`ALTER TABLE reservations DROP CONSTRAINT IF EXISTS ck_reservation_dates`,
		`ALTER TABLE reservations ADD CONSTRAINT ck_reservation_dates CHECK (check_in < check_out)`,
		`ALTER TABLE reservations DROP CONSTRAINT IF EXISTS ck_guests_positive`,
		`ALTER TABLE reservations ADD CONSTRAINT ck_guests_positive CHECK (guests_count > 0)`,
	}
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			return fmt.Errorf("apply constraint: %w", err)
		}
	}
	return nil
}
