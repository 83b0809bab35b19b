package repository

import (
	"context"

	"gorm.io/gorm"

	"cabanas/internal/domain"
)

type AccommodationRepository struct {
	db *gorm.DB
}

func NewAccommodationRepository(db *gorm.DB) *AccommodationRepository {
	return &AccommodationRepository{db: db}
}

func (r *AccommodationRepository) Create(ctx context.Context, a *domain.Accommodation) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AccommodationRepository) GetByID(ctx context.Context, id int64) (*domain.Accommodation, error) {
	var a domain.Accommodation
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccommodationRepository) ListActive(ctx context.Context) ([]domain.Accommodation, error) {
	var out []domain.Accommodation
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&out).Error
	return out, err
}

func (r *AccommodationRepository) Update(ctx context.Context, a *domain.Accommodation) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *AccommodationRepository) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Accommodation{}).
		Where("id = ?", id).
		Update("active", active)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Delete removes the accommodation together with its reservations. Admin-only
// cascade; reservation history for other accommodations is untouched.
func (r *AccommodationRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("accommodation_id = ?", id).Delete(&domain.Reservation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Accommodation{}, id).Error
	})
}
