package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cabanas/internal/database"
	"cabanas/internal/domain"
)

func setupDB(t *testing.T) *gorm.DB {
	db, err := database.Connect(":memory:")
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the in-memory database alive across queries.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&domain.Accommodation{},
		&domain.Reservation{},
		&domain.Payment{},
	))
	return db
}

func seedAccommodation(t *testing.T, db *gorm.DB) *domain.Accommodation {
	acc := &domain.Accommodation{
		Name:              "Cabana del Lago",
		Type:              domain.AccommodationCabin,
		Capacity:          4,
		BasePrice:         100,
		WeekendMultiplier: 1.2,
		Active:            true,
	}
	require.NoError(t, db.Create(acc).Error)
	return acc
}

func newReservation(accID int64, code string, checkIn, checkOut time.Time) *domain.Reservation {
	exp := time.Now().Add(30 * time.Minute)
	return &domain.Reservation{
		Code:            code,
		AccommodationID: accID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		GuestName:       "Ana Gomez",
		GuestPhone:      "+5491112345678",
		GuestsCount:     2,
		Nights:          2,
		BasePriceNight:  100,
		TotalPrice:      220,
		DepositPercent:  30,
		DepositAmount:   66,
		Status:          domain.ReservationPreReserved,
		PaymentStatus:   domain.PaymentPending,
		ExpiresAt:       &exp,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreate_RejectsOverlap(t *testing.T) {
	db := setupDB(t)
	repo := NewReservationRepository(db)
	acc := seedAccommodation(t, db)
	ctx := context.Background()

	first := newReservation(acc.ID, "RES0001", date(2026, 9, 4), date(2026, 9, 8))
	require.NoError(t, repo.Create(ctx, first))

	cases := []struct {
		name               string
		checkIn, checkOut  time.Time
		wantErr            error
	}{
		{"identical range", date(2026, 9, 4), date(2026, 9, 8), ErrOverlap},
		{"straddles start", date(2026, 9, 2), date(2026, 9, 5), ErrOverlap},
		{"straddles end", date(2026, 9, 7), date(2026, 9, 10), ErrOverlap},
		{"contained", date(2026, 9, 5), date(2026, 9, 6), ErrOverlap},
		{"touching end is free", date(2026, 9, 8), date(2026, 9, 10), nil},
		{"touching start is free", date(2026, 9, 2), date(2026, 9, 4), nil},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := newReservation(acc.ID, "RESX"+string(rune('A'+i)), tc.checkIn, tc.checkOut)
			err := repo.Create(ctx, res)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreate_CancelledRowsDoNotBlock(t *testing.T) {
	db := setupDB(t)
	repo := NewReservationRepository(db)
	acc := seedAccommodation(t, db)
	ctx := context.Background()

	first := newReservation(acc.ID, "RES0001", date(2026, 9, 4), date(2026, 9, 8))
	require.NoError(t, repo.Create(ctx, first))
	_, err := repo.Cancel(ctx, "RES0001",
		[]domain.ReservationStatus{domain.ReservationPreReserved}, "test", time.Now())
	require.NoError(t, err)

	second := newReservation(acc.ID, "RES0002", date(2026, 9, 4), date(2026, 9, 8))
	assert.NoError(t, repo.Create(ctx, second))
}

func TestCreate_OtherAccommodationDoesNotBlock(t *testing.T) {
	db := setupDB(t)
	repo := NewReservationRepository(db)
	acc1 := seedAccommodation(t, db)
	acc2 := seedAccommodation(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newReservation(acc1.ID, "RES0001", date(2026, 9, 4), date(2026, 9, 8))))
	assert.NoError(t, repo.Create(ctx, newReservation(acc2.ID, "RES0002", date(2026, 9, 4), date(2026, 9, 8))))
}

func TestCreate_DuplicateCode(t *testing.T) {
	db := setupDB(t)
	repo := NewReservationRepository(db)
	acc := seedAccommodation(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newReservation(acc.ID, "RES0001", date(2026, 9, 4), date(2026, 9, 6))))
	err := repo.Create(ctx, newReservation(acc.ID, "RES0001", date(2026, 10, 4), date(2026, 10, 6)))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestConfirm_IsConditional(t *testing.T) {
	db := setupDB(t)
	repo := NewReservationRepository(db)
	acc := seedAccommodation(t, db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, newReservation(acc.ID, "RES0001", date(2026, 9, 4), date(2026, 9, 6))))

	ok, err := repo.Confirm(ctx, "RES0001", now)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second confirm sees zero rows.
	ok, err = repo.Confirm(ctx, "RES0001", now)
	require.NoError(t, err)
	assert.False(t, ok)

	res, err := repo.GetByCode(ctx, "RES0001")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, res.Status)
	assert.Nil(t, res.ExpiresAt)
	assert.NotNil(t, res.ConfirmedAt)
}

func TestCancel_DoesNotTouchOtherStatuses(t *testing.T) {
	db := setupDB(t)
	repo := NewReservationRepository(db)
	acc := seedAccommodation(t, db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, newReservation(acc.ID, "RES0001", date(2026, 9, 4), date(2026, 9, 6))))
	ok, err := repo.Confirm(ctx, "RES0001", now)
	require.NoError(t, err)
	require.True(t, ok)

	// pre_reserved-only cancel must not hit a confirmed row.
	ok, err = repo.Cancel(ctx, "RES0001",
		[]domain.ReservationStatus{domain.ReservationPreReserved}, "x", now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Cancel(ctx, "RES0001",
		[]domain.ReservationStatus{domain.ReservationPreReserved, domain.ReservationConfirmed}, "guest", now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExtendHold_SingleUse(t *testing.T) {
	db := setupDB(t)
	repo := NewReservationRepository(db)
	acc := seedAccommodation(t, db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, newReservation(acc.ID, "RES0001", date(2026, 9, 4), date(2026, 9, 6))))

	ok, err := repo.ExtendHold(ctx, "RES0001", 30*time.Minute, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ExtendHold(ctx, "RES0001", 30*time.Minute, now)
	require.NoError(t, err)
	assert.False(t, ok)

	res, err := repo.GetByCode(ctx, "RES0001")
	require.NoError(t, err)
	assert.True(t, res.ExtendedOnce)
	assert.True(t, res.ExpiresAt.After(now.Add(25*time.Minute)))
}

func TestExpireBatch_CancelsOnlyLapsedHolds(t *testing.T) {
	db := setupDB(t)
	repo := NewReservationRepository(db)
	acc := seedAccommodation(t, db)
	ctx := context.Background()
	now := time.Now()

	lapsed := newReservation(acc.ID, "RES0001", date(2026, 9, 4), date(2026, 9, 6))
	past := now.Add(-time.Minute)
	lapsed.ExpiresAt = &past
	require.NoError(t, repo.Create(ctx, lapsed))

	live := newReservation(acc.ID, "RES0002", date(2026, 10, 4), date(2026, 10, 6))
	require.NoError(t, repo.Create(ctx, live))

	confirmed := newReservation(acc.ID, "RES0003", date(2026, 11, 4), date(2026, 11, 6))
	confirmed.ExpiresAt = &past
	require.NoError(t, repo.Create(ctx, confirmed))
	ok, err := repo.Confirm(ctx, "RES0003", now)
	require.NoError(t, err)
	require.True(t, ok)

	expired, err := repo.ExpireBatch(ctx, now, 100)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "RES0001", expired[0].Code)

	res, err := repo.GetByCode(ctx, "RES0001")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCancelled, res.Status)
	assert.Equal(t, domain.CancelCauseExpired, res.CancelReason)

	res, err = repo.GetByCode(ctx, "RES0002")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationPreReserved, res.Status)
}

func TestExpireBatch_ReturnsOnlyRowsItCancelled(t *testing.T) {
	db := setupDB(t)
	repo := NewReservationRepository(db)
	acc := seedAccommodation(t, db)
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-time.Minute)

	lapsed := newReservation(acc.ID, "RES0001", date(2026, 9, 4), date(2026, 9, 6))
	lapsed.ExpiresAt = &past
	require.NoError(t, repo.Create(ctx, lapsed))

	// A hold confirmed with a stale expires_at still on the row: the batch
	// UPDATE must skip it and the result must not report it as expired.
	raced := newReservation(acc.ID, "RES0002", date(2026, 10, 4), date(2026, 10, 6))
	raced.ExpiresAt = &past
	require.NoError(t, repo.Create(ctx, raced))
	err := db.Model(&domain.Reservation{}).
		Where("code = ?", "RES0002").
		Update("reservation_status", domain.ReservationConfirmed).Error
	require.NoError(t, err)

	expired, err := repo.ExpireBatch(ctx, now, 100)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "RES0001", expired[0].Code)
	assert.Equal(t, domain.ReservationCancelled, expired[0].Status)
	assert.Equal(t, domain.CancelCauseExpired, expired[0].CancelReason)

	res, err := repo.GetByCode(ctx, "RES0002")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, res.Status)
}

func TestReminders_DueAndMarked(t *testing.T) {
	db := setupDB(t)
	repo := NewReservationRepository(db)
	acc := seedAccommodation(t, db)
	ctx := context.Background()
	now := time.Now()

	soon := newReservation(acc.ID, "RES0001", date(2026, 9, 4), date(2026, 9, 6))
	in10 := now.Add(10 * time.Minute)
	soon.ExpiresAt = &in10
	require.NoError(t, repo.Create(ctx, soon))

	later := newReservation(acc.ID, "RES0002", date(2026, 10, 4), date(2026, 10, 6))
	in2h := now.Add(2 * time.Hour)
	later.ExpiresAt = &in2h
	require.NoError(t, repo.Create(ctx, later))

	due, err := repo.RemindersDue(ctx, now, 15*time.Minute, 100)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "RES0001", due[0].Code)

	ok, err := repo.MarkReminded(ctx, due[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Marked rows drop out of the next pass, and re-marking is a no-op.
	due, err = repo.RemindersDue(ctx, now, 15*time.Minute, 100)
	require.NoError(t, err)
	assert.Empty(t, due)

	ok, err = repo.MarkReminded(ctx, soon.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetPaymentState_LeavesLifecycleStatusAlone(t *testing.T) {
	db := setupDB(t)
	repo := NewReservationRepository(db)
	acc := seedAccommodation(t, db)
	ctx := context.Background()

	res := newReservation(acc.ID, "RES0001", date(2026, 9, 4), date(2026, 9, 6))
	require.NoError(t, repo.Create(ctx, res))

	require.NoError(t, repo.SetPaymentState(ctx, res.ID, domain.PaymentPartiallyPaid))
	got, err := repo.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPartiallyPaid, got.PaymentStatus)
	assert.Equal(t, domain.ReservationPreReserved, got.Status)

	require.NoError(t, repo.SetPaymentState(ctx, res.ID, domain.PaymentFailed))
	got, err = repo.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, got.PaymentStatus)
}

func TestConfirmPaid_SettlesPayment(t *testing.T) {
	db := setupDB(t)
	repo := NewReservationRepository(db)
	acc := seedAccommodation(t, db)
	ctx := context.Background()
	now := time.Now()

	res := newReservation(acc.ID, "RES0001", date(2026, 9, 4), date(2026, 9, 6))
	require.NoError(t, repo.Create(ctx, res))

	ok, err := repo.ConfirmPaid(ctx, res.ID, 66, now)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, got.Status)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, 66.0, got.PaidAmount)

	// Not applicable twice.
	ok, err = repo.ConfirmPaid(ctx, res.ID, 66, now)
	require.NoError(t, err)
	assert.False(t, ok)
}
