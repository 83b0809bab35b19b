package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrOverlap means the range-exclusion constraint rejected the write.
	ErrOverlap = errors.New("date range overlaps an active reservation")
	// ErrDuplicate means a unique constraint rejected the write.
	ErrDuplicate = errors.New("duplicate key")
)

// Postgres error codes.
const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

// translate maps driver-level constraint violations to repository sentinels so
// services never inspect driver errors themselves.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation:
			return ErrOverlap
		case pgUniqueViolation:
			return ErrDuplicate
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	// modernc sqlite reports constraint failures as plain strings.
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}
