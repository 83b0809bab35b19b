package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"cabanas/internal/domain"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).Where("external_payment_id = ?", externalID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts the first event for an external payment id. A racing insert
// for the same id surfaces as ErrDuplicate, which callers treat as "a peer got
// there first".
func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

// RecordRedelivery applies a redelivered event: bumps the counter, refreshes
// the receive timestamp, and overwrites status/amount (the provider is the
// source of truth; the latest event wins).
func (r *PaymentRepository) RecordRedelivery(ctx context.Context, id int64, status string, amount float64, now time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"events_count":  gorm.Expr("events_count + 1"),
			"event_last_at": now,
			"status":        status,
			"amount":        amount,
		}).Error
}

// LinkReservation attaches an orphan payment to a reservation once the
// reservation row becomes visible.
func (r *PaymentRepository) LinkReservation(ctx context.Context, paymentID, reservationID int64) error {
	return r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND reservation_id IS NULL", paymentID).
		Update("reservation_id", reservationID).Error
}

func (r *PaymentRepository) ListByReservation(ctx context.Context, reservationID int64) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("id").
		Find(&out).Error
	return out, err
}
