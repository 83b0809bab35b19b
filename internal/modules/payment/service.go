package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cabanas/internal/domain"
	"cabanas/internal/notify"
	"cabanas/internal/pkg/metrics"
	"cabanas/internal/repository"
)

var knownStatuses = map[string]bool{
	domain.ProviderStatusPending:  true,
	domain.ProviderStatusApproved: true,
	domain.ProviderStatusRejected: true,
	domain.ProviderStatusRefunded: true,
}

type Service struct {
	payments     PaymentRepo
	reservations ReservationStore
	notifier     *notify.BestEffort
	metrics      *metrics.Metrics
	log          *zap.Logger

	now func() time.Time
}

func NewService(payments PaymentRepo, reservations ReservationStore,
	notifier *notify.BestEffort, m *metrics.Metrics, log *zap.Logger) *Service {
	return &Service{
		payments:     payments,
		reservations: reservations,
		notifier:     notifier,
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
}

// ProcessEvent applies one provider webhook delivery. The unique index on
// external_payment_id makes the whole flow idempotent: a first delivery
// inserts, every redelivery updates the same row, and a racing peer insert is
// detected and skipped. Side effects on the reservation fire only when the
// provider status actually changed.
func (s *Service) ProcessEvent(ctx context.Context, req EventRequest) (*Result, error) {
	if !knownStatuses[req.Status] {
		s.count("invalid")
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, req.Status)
	}
	if req.Amount < 0 {
		s.count("invalid")
		return nil, fmt.Errorf("%w: negative amount", ErrValidation)
	}
	now := s.now()

	existing, err := s.payments.GetByExternalID(ctx, req.ExternalPaymentID)
	switch {
	case err == nil:
		return s.applyRedelivery(ctx, existing, req, now)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.applyFirstDelivery(ctx, req, now)
	default:
		return nil, fmt.Errorf("load payment: %w", err)
	}
}

func (s *Service) applyRedelivery(ctx context.Context, p *domain.Payment, req EventRequest, now time.Time) (*Result, error) {
	statusChanged := p.Status != req.Status

	if err := s.payments.RecordRedelivery(ctx, p.ID, req.Status, req.Amount, now); err != nil {
		return nil, fmt.Errorf("record redelivery: %w", err)
	}
	p.Status = req.Status
	p.Amount = req.Amount
	p.EventsCount++
	p.EventLastAt = &now

	// Late linkage: the reservation row may have become visible since the
	// first delivery.
	if p.ReservationID == nil && req.ExternalReference != "" {
		if resv, err := s.reservations.GetByCode(ctx, req.ExternalReference); err == nil {
			if err := s.payments.LinkReservation(ctx, p.ID, resv.ID); err != nil {
				s.log.Warn("payment link failed", zap.Int64("payment_id", p.ID), zap.Error(err))
			} else {
				p.ReservationID = &resv.ID
			}
		}
	}

	if !statusChanged {
		s.count(OutcomeUnchanged)
		return &Result{Outcome: OutcomeUnchanged, Payment: p}, nil
	}

	s.applySideEffects(ctx, p, now)
	s.count(OutcomeUpdated)
	return &Result{Outcome: OutcomeUpdated, Payment: p}, nil
}

func (s *Service) applyFirstDelivery(ctx context.Context, req EventRequest, now time.Time) (*Result, error) {
	p := &domain.Payment{
		ExternalPaymentID: req.ExternalPaymentID,
		ExternalReference: req.ExternalReference,
		Status:            req.Status,
		Amount:            req.Amount,
		EventsCount:       1,
		EventFirstAt:      &now,
		EventLastAt:       &now,
	}
	if req.Currency != "" {
		p.Currency = req.Currency
	}
	if req.Provider != "" {
		p.Provider = req.Provider
	}

	if req.ExternalReference != "" {
		resv, err := s.reservations.GetByCode(ctx, req.ExternalReference)
		switch {
		case err == nil:
			p.ReservationID = &resv.ID
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Orphan: the webhook outran the reservation write. Keep the row,
			// a redelivery will link it.
			s.log.Warn("payment for unknown reservation",
				zap.String("external_payment_id", req.ExternalPaymentID),
				zap.String("external_reference", req.ExternalReference))
		default:
			return nil, fmt.Errorf("load reservation: %w", err)
		}
	}

	if err := s.payments.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// A concurrent delivery of the same external id won the insert.
			s.count(OutcomeDuplicate)
			return &Result{Outcome: OutcomeDuplicate}, nil
		}
		return nil, fmt.Errorf("create payment: %w", err)
	}

	s.applySideEffects(ctx, p, now)
	s.count(OutcomeCreated)
	return &Result{Outcome: OutcomeCreated, Payment: p}, nil
}

// applySideEffects reacts to the payment's current status. Failures here are
// logged, not returned: the event itself is already durably recorded.
func (s *Service) applySideEffects(ctx context.Context, p *domain.Payment, now time.Time) {
	if p.ReservationID == nil {
		return
	}
	resv, err := s.reservations.GetByID(ctx, *p.ReservationID)
	if err != nil {
		s.log.Error("load reservation for payment side effects",
			zap.Int64("reservation_id", *p.ReservationID), zap.Error(err))
		return
	}

	switch p.Status {
	case domain.ProviderStatusApproved:
		ok, err := s.reservations.ConfirmPaid(ctx, resv.ID, p.Amount, now)
		if err != nil {
			s.log.Error("confirm on payment failed", zap.String("code", resv.Code), zap.Error(err))
			return
		}
		if !ok {
			// Already confirmed or terminal; the payment row still holds
			// the provider's truth.
			s.log.Info("payment approved for non-pending reservation",
				zap.String("code", resv.Code), zap.String("status", string(resv.Status)))
		} else if p.Amount < resv.DepositAmount {
			// The provider approved less than the deposit. The reservation
			// is confirmed regardless; the shortfall stays visible on the
			// payment state.
			if err := s.reservations.SetPaymentState(ctx, resv.ID, domain.PaymentPartiallyPaid); err != nil {
				s.log.Error("mark partial payment failed", zap.String("code", resv.Code), zap.Error(err))
			}
		}
		s.notify(ctx, notify.EventPaymentApproved, resv, p.Amount)

	case domain.ProviderStatusRejected:
		if err := s.reservations.SetPaymentState(ctx, resv.ID, domain.PaymentFailed); err != nil {
			s.log.Error("mark payment failed", zap.String("code", resv.Code), zap.Error(err))
		}
		s.notify(ctx, notify.EventPaymentRejected, resv, p.Amount)

	case domain.ProviderStatusRefunded:
		if err := s.reservations.SetPaymentState(ctx, resv.ID, domain.PaymentRefunded); err != nil {
			s.log.Error("mark payment refunded", zap.String("code", resv.Code), zap.Error(err))
		}

	case domain.ProviderStatusPending:
		s.notify(ctx, notify.EventPaymentPending, resv, p.Amount)
	}
}

func (s *Service) notify(ctx context.Context, eventType string, resv *domain.Reservation, amount float64) {
	s.notifier.Send(ctx, notify.Event{
		Type:            eventType,
		ReservationCode: resv.Code,
		GuestName:       resv.GuestName,
		GuestPhone:      resv.GuestPhone,
		GuestEmail:      resv.GuestEmail,
		Amount:          amount,
	})
}

func (s *Service) count(result string) {
	s.metrics.PaymentEventsTotal.WithLabelValues(result).Inc()
}
