package reservation

import (
	"context"
	"time"

	"cabanas/internal/domain"
	"cabanas/internal/lock"
)

type Repository interface {
	Create(ctx context.Context, res *domain.Reservation) error
	GetByCode(ctx context.Context, code string) (*domain.Reservation, error)
	Confirm(ctx context.Context, code string, now time.Time) (bool, error)
	Cancel(ctx context.Context, code string, fromStatuses []domain.ReservationStatus, reason string, now time.Time) (bool, error)
	Finish(ctx context.Context, code string, to domain.ReservationStatus, now time.Time) (bool, error)
	ExtendHold(ctx context.Context, code string, window time.Duration, now time.Time) (bool, error)
	ListByAccommodation(ctx context.Context, accommodationID int64, limit, offset int) ([]domain.Reservation, error)
}

type AccommodationReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Accommodation, error)
}

// Lease is the handle over an acquired date-range lock.
type Lease interface {
	Release(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) error
	Token() string
}

// Locker guards a date range while the pre-reservation row is being written.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
	Resume(key, value string) Lease
}

// RedisLocker adapts lock.Manager to the Locker interface.
type RedisLocker struct {
	M *lock.Manager
}

func (r RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	l, err := r.M.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r RedisLocker) Resume(key, value string) Lease {
	return r.M.Resume(key, value)
}
