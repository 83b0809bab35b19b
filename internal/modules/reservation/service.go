package reservation

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cabanas/internal/domain"
	"cabanas/internal/lock"
	"cabanas/internal/notify"
	"cabanas/internal/pkg/metrics"
	"cabanas/internal/repository"
)

// Config carries the timing and pricing knobs the service needs.
type Config struct {
	HoldWindow     time.Duration
	LockTTL        time.Duration
	DepositPercent int
	// LockFailOpen lets creation proceed on lock-store outage, relying on the
	// storage exclusion constraint alone. Off by default: an outage then reads
	// as contention and the request is rejected as busy.
	LockFailOpen bool
}

type Service struct {
	repo           Repository
	accommodations AccommodationReader
	locks          Locker
	notifier       *notify.BestEffort
	metrics        *metrics.Metrics
	log            *zap.Logger
	cfg            Config

	now func() time.Time
}

func NewService(repo Repository, accommodations AccommodationReader, locks Locker,
	notifier *notify.BestEffort, m *metrics.Metrics, log *zap.Logger, cfg Config) *Service {
	return &Service{
		repo:           repo,
		accommodations: accommodations,
		locks:          locks,
		notifier:       notifier,
		metrics:        m,
		log:            log,
		cfg:            cfg,
		now:            time.Now,
	}
}

var cancellableStatuses = []domain.ReservationStatus{
	domain.ReservationPreReserved,
	domain.ReservationConfirmed,
}

// Create runs the pre-reservation protocol: validate, price, take the
// date-range lock, insert the row. The storage constraint stays the source of
// truth for overlaps; the lock only keeps concurrent requests for the same
// range from burning a constraint violation each.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Reservation, error) {
	checkIn, checkOut, err := req.Dates()
	if err != nil {
		return nil, fmt.Errorf("%w: dates must be YYYY-MM-DD", ErrValidation)
	}
	if !checkOut.After(checkIn) {
		return nil, fmt.Errorf("%w: check_in must precede check_out", ErrValidation)
	}
	now := s.now()
	if checkIn.Before(now.Truncate(24 * time.Hour)) {
		return nil, fmt.Errorf("%w: check_in is in the past", ErrValidation)
	}
	if req.GuestsCount <= 0 {
		return nil, fmt.Errorf("%w: guests_count must be positive", ErrValidation)
	}

	acc, err := s.accommodations.GetByID(ctx, req.AccommodationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccommodationNotFound
		}
		return nil, fmt.Errorf("load accommodation: %w", err)
	}
	if !acc.Active {
		return nil, ErrAccommodationNotFound
	}
	if req.GuestsCount > acc.Capacity {
		return nil, fmt.Errorf("%w: guests_count exceeds capacity %d", ErrValidation, acc.Capacity)
	}

	quote := Price(acc.BasePrice, acc.WeekendMultiplier, checkIn, checkOut, s.cfg.DepositPercent)

	key := lock.Key(acc.ID, checkIn, checkOut)
	lease, err := s.locks.Acquire(ctx, key, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, ErrBusy
		}
		if !s.cfg.LockFailOpen {
			s.log.Error("lock store unavailable", zap.String("key", key), zap.Error(err))
			return nil, ErrBusy
		}
		s.log.Warn("lock store unavailable, relying on storage constraint",
			zap.String("key", key), zap.Error(err))
		lease = nil
	}

	expiresAt := now.Add(s.cfg.HoldWindow)
	res := &domain.Reservation{
		Code:            newCode(now),
		AccommodationID: acc.ID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		GuestName:       req.GuestName,
		GuestPhone:      req.GuestPhone,
		GuestEmail:      req.GuestEmail,
		GuestsCount:     req.GuestsCount,
		Nights:          quote.Nights,
		BasePriceNight:  acc.BasePrice,
		TotalPrice:      quote.Total,
		DepositPercent:  s.cfg.DepositPercent,
		DepositAmount:   quote.Deposit,
		Status:          domain.ReservationPreReserved,
		PaymentStatus:   domain.PaymentPending,
		Channel:         req.Channel,
		ExpiresAt:       &expiresAt,
	}
	if lease != nil {
		res.LockValue = lease.Token()
	}

	if err := s.repo.Create(ctx, res); err != nil {
		if lease != nil {
			if rerr := lease.Release(ctx); rerr != nil && !errors.Is(rerr, lock.ErrNotOwned) {
				s.log.Warn("lock release failed", zap.String("key", key), zap.Error(rerr))
			}
		}
		if errors.Is(err, repository.ErrOverlap) {
			return nil, ErrOverlap
		}
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	// The lock is deliberately not released on success: it expires with its
	// TTL, shielding the new hold from immediate re-lock attempts.

	s.metrics.ReservationsTotal.WithLabelValues(string(domain.ReservationPreReserved)).Inc()
	s.notifier.Send(ctx, notify.Event{
		Type:              notify.EventPreReserved,
		ReservationCode:   res.Code,
		GuestName:         res.GuestName,
		GuestPhone:        res.GuestPhone,
		GuestEmail:        res.GuestEmail,
		AccommodationName: acc.Name,
		CheckIn:           checkIn.Format(dateLayout),
		CheckOut:          checkOut.Format(dateLayout),
		Amount:            res.DepositAmount,
		ExpiresAt:         expiresAt.Format(time.RFC3339),
	})
	return res, nil
}

// Confirm moves a live hold to confirmed. Confirming a lapsed hold cancels it
// instead and reports it as expired.
func (s *Service) Confirm(ctx context.Context, code string) (*domain.Reservation, error) {
	now := s.now()
	res, err := s.getByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if res.Expired(now) {
		if _, err := s.repo.Cancel(ctx, code,
			[]domain.ReservationStatus{domain.ReservationPreReserved},
			domain.CancelCauseExpired, now); err != nil {
			return nil, fmt.Errorf("cancel lapsed hold: %w", err)
		}
		return nil, ErrExpired
	}
	if res.Status != domain.ReservationPreReserved {
		if res.Status == domain.ReservationCancelled && res.CancelReason == domain.CancelCauseExpired {
			return res, ErrExpired
		}
		return res, ErrInvalidTransition
	}

	ok, err := s.repo.Confirm(ctx, code, now)
	if err != nil {
		return nil, fmt.Errorf("confirm reservation: %w", err)
	}
	if !ok {
		// Lost the race; the current row state decides the outcome.
		cur, err := s.getByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if cur.Status == domain.ReservationCancelled && cur.CancelReason == domain.CancelCauseExpired {
			return cur, ErrExpired
		}
		return cur, ErrInvalidTransition
	}

	res.Status = domain.ReservationConfirmed
	res.ConfirmedAt = &now
	res.ExpiresAt = nil
	s.metrics.ReservationsTotal.WithLabelValues(string(domain.ReservationConfirmed)).Inc()
	return res, nil
}

// Cancel ends an active reservation and frees its date range early by
// releasing the creation lock when one is still recorded.
func (s *Service) Cancel(ctx context.Context, code, reason string) (*domain.Reservation, error) {
	now := s.now()
	res, err := s.getByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !res.Active() {
		return res, ErrInvalidTransition
	}
	if reason == "" {
		reason = "guest-cancelled"
	}

	ok, err := s.repo.Cancel(ctx, code, cancellableStatuses, reason, now)
	if err != nil {
		return nil, fmt.Errorf("cancel reservation: %w", err)
	}
	if !ok {
		cur, err := s.getByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		return cur, ErrInvalidTransition
	}

	if res.LockValue != "" {
		lease := s.locks.Resume(lock.Key(res.AccommodationID, res.CheckIn, res.CheckOut), res.LockValue)
		if rerr := lease.Release(ctx); rerr != nil && !errors.Is(rerr, lock.ErrNotOwned) {
			s.log.Warn("lock release failed", zap.String("code", code), zap.Error(rerr))
		}
	}

	res.Status = domain.ReservationCancelled
	res.CancelledAt = &now
	res.CancelReason = reason
	s.metrics.ReservationsTotal.WithLabelValues(string(domain.ReservationCancelled)).Inc()
	return res, nil
}

// Complete closes out a confirmed stay after checkout.
func (s *Service) Complete(ctx context.Context, code string) (*domain.Reservation, error) {
	return s.finish(ctx, code, domain.ReservationCompleted)
}

// NoShow marks a confirmed reservation whose guest never arrived.
func (s *Service) NoShow(ctx context.Context, code string) (*domain.Reservation, error) {
	return s.finish(ctx, code, domain.ReservationNoShow)
}

func (s *Service) finish(ctx context.Context, code string, to domain.ReservationStatus) (*domain.Reservation, error) {
	now := s.now()
	res, err := s.getByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if res.Status != domain.ReservationConfirmed {
		return res, ErrInvalidTransition
	}

	ok, err := s.repo.Finish(ctx, code, to, now)
	if err != nil {
		return nil, fmt.Errorf("finish reservation: %w", err)
	}
	if !ok {
		cur, err := s.getByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		return cur, ErrInvalidTransition
	}

	res.Status = to
	if to == domain.ReservationCompleted {
		res.CompletedAt = &now
	}
	s.metrics.ReservationsTotal.WithLabelValues(string(to)).Inc()
	return res, nil
}

// ExtendHold pushes a live hold's deadline out by one more hold window. Each
// reservation gets at most one extension.
func (s *Service) ExtendHold(ctx context.Context, code string) (*domain.Reservation, error) {
	now := s.now()
	res, err := s.getByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if res.Status != domain.ReservationPreReserved {
		if res.Status == domain.ReservationCancelled && res.CancelReason == domain.CancelCauseExpired {
			return res, ErrExpired
		}
		return res, ErrInvalidTransition
	}
	if res.Expired(now) {
		return res, ErrExpired
	}
	if res.ExtendedOnce {
		return res, ErrAlreadyExtended
	}

	ok, err := s.repo.ExtendHold(ctx, code, s.cfg.HoldWindow, now)
	if err != nil {
		return nil, fmt.Errorf("extend hold: %w", err)
	}
	if !ok {
		cur, err := s.getByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		switch {
		case cur.ExtendedOnce:
			return cur, ErrAlreadyExtended
		case cur.Expired(now) || (cur.Status == domain.ReservationCancelled && cur.CancelReason == domain.CancelCauseExpired):
			return cur, ErrExpired
		default:
			return cur, ErrInvalidTransition
		}
	}

	// Keep the Redis hold roughly in step with the row deadline; the row is
	// authoritative, so a failure here is only logged.
	if res.LockValue != "" {
		lease := s.locks.Resume(lock.Key(res.AccommodationID, res.CheckIn, res.CheckOut), res.LockValue)
		if lerr := lease.Extend(ctx, s.cfg.LockTTL); lerr != nil {
			s.log.Warn("lock extend failed", zap.String("code", code), zap.Error(lerr))
		}
	}

	expiresAt := now.Add(s.cfg.HoldWindow)
	res.ExpiresAt = &expiresAt
	res.ExtendedOnce = true
	return res, nil
}

func (s *Service) Get(ctx context.Context, code string) (*domain.Reservation, error) {
	return s.getByCode(ctx, code)
}

func (s *Service) ListByAccommodation(ctx context.Context, accommodationID int64, limit, offset int) ([]domain.Reservation, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByAccommodation(ctx, accommodationID, limit, offset)
}

func (s *Service) getByCode(ctx context.Context, code string) (*domain.Reservation, error) {
	res, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	return res, nil
}

// newCode builds a reservation code like RES260829A1B2C3: a date stamp plus
// six hex characters from a fresh UUID.
func newCode(now time.Time) string {
	id := uuid.New()
	return "RES" + now.Format("060102") + strings.ToUpper(hex.EncodeToString(id[:3]))
}
