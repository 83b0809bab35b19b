package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"cabanas/internal/domain"
)

type ReservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

var activeStatuses = []domain.ReservationStatus{
	domain.ReservationPreReserved,
	domain.ReservationConfirmed,
}

// Create inserts a new pre-reservation. On PostgreSQL the range-exclusion
// constraint is the atomic overlap guard and a violation surfaces as
// ErrOverlap. On SQLite the same predicate is evaluated inside the insert's
// write transaction; SQLite serializes writers, so the check-then-insert pair
// is atomic there too.
func (r *ReservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	if r.db.Dialector.Name() == "postgres" {
		err := r.db.WithContext(ctx).Create(res).Error
		return translate(err)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cnt int64
		err := tx.Model(&domain.Reservation{}).
			Where("accommodation_id = ?", res.AccommodationID).
			Where("reservation_status IN ?", activeStatuses).
			Where("check_in < ? AND check_out > ?", res.CheckOut, res.CheckIn).
			Count(&cnt).Error
		if err != nil {
			return err
		}
		if cnt > 0 {
			return ErrOverlap
		}
		return tx.Create(res).Error
	})
	return translate(err)
}

func (r *ReservationRepository) GetByCode(ctx context.Context, code string) (*domain.Reservation, error) {
	var res domain.Reservation
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&res).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	var res domain.Reservation
	if err := r.db.WithContext(ctx).First(&res, id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

// Confirm transitions pre_reserved -> confirmed as a single conditional
// update. It reports false when the row was not in the expected state, in
// which case the caller re-reads to learn the terminal state.
func (r *ReservationRepository) Confirm(ctx context.Context, code string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Reservation{}).
		Where("code = ? AND reservation_status = ?", code, domain.ReservationPreReserved).
		Updates(map[string]interface{}{
			"reservation_status": domain.ReservationConfirmed,
			"confirmed_at":       now,
			"expires_at":         nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ConfirmPaid is the payment-driven confirmation: it also settles the payment
// state and records the paid amount.
func (r *ReservationRepository) ConfirmPaid(ctx context.Context, id int64, amount float64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Reservation{}).
		Where("id = ? AND reservation_status = ?", id, domain.ReservationPreReserved).
		Updates(map[string]interface{}{
			"reservation_status": domain.ReservationConfirmed,
			"payment_status":     domain.PaymentPaid,
			"paid_amount":        amount,
			"confirmed_at":       now,
			"expires_at":         nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetPaymentState overwrites the reservation's payment state without touching
// its lifecycle status.
func (r *ReservationRepository) SetPaymentState(ctx context.Context, id int64, state domain.PaymentState) error {
	return r.db.WithContext(ctx).Model(&domain.Reservation{}).
		Where("id = ?", id).
		Update("payment_status", state).Error
}

// Cancel transitions an active reservation to cancelled, conditionally on its
// current status still being one of fromStatuses.
func (r *ReservationRepository) Cancel(ctx context.Context, code string, fromStatuses []domain.ReservationStatus, reason string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Reservation{}).
		Where("code = ? AND reservation_status IN ?", code, fromStatuses).
		Updates(map[string]interface{}{
			"reservation_status": domain.ReservationCancelled,
			"cancelled_at":       now,
			"cancel_reason":      reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Finish closes out a confirmed reservation as completed or no_show.
func (r *ReservationRepository) Finish(ctx context.Context, code string, to domain.ReservationStatus, now time.Time) (bool, error) {
	updates := map[string]interface{}{"reservation_status": to}
	if to == domain.ReservationCompleted {
		updates["completed_at"] = now
	}
	res := r.db.WithContext(ctx).Model(&domain.Reservation{}).
		Where("code = ? AND reservation_status = ?", code, domain.ReservationConfirmed).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ExtendHold pushes expires_at out by window, at most once per reservation and
// only while the hold is still live.
func (r *ReservationRepository) ExtendHold(ctx context.Context, code string, window time.Duration, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Reservation{}).
		Where("code = ? AND reservation_status = ? AND extended_once = ? AND expires_at > ?",
			code, domain.ReservationPreReserved, false, now).
		Updates(map[string]interface{}{
			"expires_at":    now.Add(window),
			"extended_once": true,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ExpireBatch cancels up to limit lapsed pre-reservations and returns the rows
// it cancelled. The status predicate is repeated in the UPDATE so a racing
// confirmation cannot be clobbered, and the returned rows are re-read after
// the UPDATE so a row confirmed in between is not reported as expired.
func (r *ReservationRepository) ExpireBatch(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	var expired []domain.Reservation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		err := tx.Model(&domain.Reservation{}).
			Where("reservation_status = ?", domain.ReservationPreReserved).
			Where("expires_at IS NOT NULL AND expires_at < ?", now).
			Limit(limit).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		res := tx.Model(&domain.Reservation{}).
			Where("id IN ? AND reservation_status = ?", ids, domain.ReservationPreReserved).
			Updates(map[string]interface{}{
				"reservation_status": domain.ReservationCancelled,
				"cancelled_at":       now,
				"cancel_reason":      domain.CancelCauseExpired,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		return tx.
			Where("id IN ? AND reservation_status = ? AND cancel_reason = ?",
				ids, domain.ReservationCancelled, domain.CancelCauseExpired).
			Find(&expired).Error
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// RemindersDue returns live pre-reservations expiring within the window that
// have not been reminded yet.
func (r *ReservationRepository) RemindersDue(ctx context.Context, now time.Time, window time.Duration, limit int) ([]domain.Reservation, error) {
	var due []domain.Reservation
	err := r.db.WithContext(ctx).
		Where("reservation_status = ?", domain.ReservationPreReserved).
		Where("reminder_sent = ?", false).
		Where("expires_at >= ? AND expires_at <= ?", now, now.Add(window)).
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}

// MarkReminded flips the reminder flag, guarding against double sends across
// overlapping sweeper cycles.
func (r *ReservationRepository) MarkReminded(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Reservation{}).
		Where("id = ? AND reminder_sent = ?", id, false).
		Update("reminder_sent", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ReservationRepository) ListByAccommodation(ctx context.Context, accommodationID int64, limit, offset int) ([]domain.Reservation, error) {
	var out []domain.Reservation
	err := r.db.WithContext(ctx).
		Where("accommodation_id = ?", accommodationID).
		Order("check_in").
		Limit(limit).Offset(offset).
		Find(&out).Error
	return out, err
}
