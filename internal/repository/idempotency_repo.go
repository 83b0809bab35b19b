package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"cabanas/internal/domain"
)

type IdempotencyRepository struct {
	db *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create stores a response under its fingerprint. ErrDuplicate means a
// concurrent identical request already stored the canonical response.
func (r *IdempotencyRepository) Create(ctx context.Context, rec *domain.IdempotencyRecord) error {
	return translate(r.db.WithContext(ctx).Create(rec).Error)
}

func (r *IdempotencyRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&domain.IdempotencyRecord{}, id).Error
}

// PurgeExpired drops all records past their TTL; run opportunistically.
func (r *IdempotencyRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&domain.IdempotencyRecord{})
	return res.RowsAffected, res.Error
}
