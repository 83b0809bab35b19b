package domain

import "time"

// Payment is one row per provider payment id. Redeliveries of the same external
// id update the existing row; the unique index is the idempotency guarantee.
type Payment struct {
	ID int64 `gorm:"primaryKey" json:"id"`
	// Nullable so orphan notifications (arriving before the reservation write
	// is visible) can be recorded standalone.
	ReservationID     *int64     `gorm:"index" json:"reservation_id,omitempty"`
	Provider          string     `gorm:"type:varchar(30);not null;default:'mercadopago'" json:"provider"`
	ExternalPaymentID string     `gorm:"type:varchar(80);not null;uniqueIndex" json:"external_payment_id"`
	ExternalReference string     `gorm:"type:varchar(80);index" json:"external_reference,omitempty"`
	Status            string     `gorm:"type:varchar(30);not null;default:'pending'" json:"status"`
	Amount            float64    `gorm:"not null;default:0" json:"amount"`
	Currency          string     `gorm:"type:varchar(10);not null;default:'ARS'" json:"currency"`
	EventFirstAt      *time.Time `json:"event_first_received_at,omitempty"`
	EventLastAt       *time.Time `json:"event_last_received_at,omitempty"`
	EventsCount       int        `gorm:"not null;default:1" json:"events_count"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// Provider payment statuses.
const (
	ProviderStatusPending  = "pending"
	ProviderStatusApproved = "approved"
	ProviderStatusRejected = "rejected"
	ProviderStatusRefunded = "refunded"
)
