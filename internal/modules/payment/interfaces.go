package payment

import (
	"context"
	"time"

	"cabanas/internal/domain"
)

type PaymentRepo interface {
	GetByExternalID(ctx context.Context, externalID string) (*domain.Payment, error)
	Create(ctx context.Context, p *domain.Payment) error
	RecordRedelivery(ctx context.Context, id int64, status string, amount float64, now time.Time) error
	LinkReservation(ctx context.Context, paymentID, reservationID int64) error
}

type ReservationStore interface {
	GetByCode(ctx context.Context, code string) (*domain.Reservation, error)
	GetByID(ctx context.Context, id int64) (*domain.Reservation, error)
	ConfirmPaid(ctx context.Context, id int64, amount float64, now time.Time) (bool, error)
	SetPaymentState(ctx context.Context, id int64, state domain.PaymentState) error
}
