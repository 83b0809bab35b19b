package domain

import "time"

type ReservationStatus string

const (
	ReservationPreReserved ReservationStatus = "pre_reserved"
	ReservationConfirmed   ReservationStatus = "confirmed"
	ReservationCancelled   ReservationStatus = "cancelled"
	ReservationCompleted   ReservationStatus = "completed"
	ReservationNoShow      ReservationStatus = "no_show"
)

type PaymentState string

const (
	PaymentPending       PaymentState = "pending"
	PaymentPaid          PaymentState = "paid"
	PaymentPartiallyPaid PaymentState = "partially_paid"
	PaymentRefunded      PaymentState = "refunded"
	PaymentFailed        PaymentState = "failed"
)

// CancelCauseExpired is recorded when the sweeper cancels a lapsed hold.
const CancelCauseExpired = "auto-expired"

// Reservation date ranges are half-open: check_in is occupied, check_out is not,
// so back-to-back stays on the same accommodation are legal.
type Reservation struct {
	ID              int64             `gorm:"primaryKey" json:"id"`
	Code            string            `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	AccommodationID int64             `gorm:"not null;index" json:"accommodation_id"`
	CheckIn         time.Time         `gorm:"type:date;not null" json:"check_in"`
	CheckOut        time.Time         `gorm:"type:date;not null" json:"check_out"`
	GuestName       string            `gorm:"type:varchar(100);not null" json:"guest_name"`
	GuestPhone      string            `gorm:"type:varchar(20);not null;index" json:"guest_phone"`
	GuestEmail      string            `gorm:"type:varchar(100)" json:"guest_email,omitempty"`
	GuestsCount     int               `gorm:"not null" json:"guests_count"`
	Nights          int               `gorm:"not null" json:"nights"`
	BasePriceNight  float64           `gorm:"not null" json:"base_price_per_night"`
	TotalPrice      float64           `gorm:"not null" json:"total_price"`
	DepositPercent  int               `gorm:"not null;default:30" json:"deposit_percentage"`
	DepositAmount   float64           `gorm:"not null" json:"deposit_amount"`
	PaidAmount      float64           `gorm:"not null;default:0" json:"paid_amount"`
	Status          ReservationStatus `gorm:"column:reservation_status;type:varchar(20);not null;default:'pre_reserved';index" json:"reservation_status"`
	PaymentStatus   PaymentState      `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	Channel         string            `gorm:"type:varchar(50)" json:"channel_source,omitempty"`
	ExpiresAt       *time.Time        `gorm:"index" json:"expires_at,omitempty"`
	ExtendedOnce    bool              `gorm:"not null;default:false" json:"extended_once"`
	ReminderSent    bool              `gorm:"not null;default:false" json:"reminder_sent"`
	// Ownership token of the lock held during creation. Diagnostic only; the
	// storage constraint is what enforces exclusivity.
	LockValue    string     `gorm:"type:varchar(36)" json:"-"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelReason string     `gorm:"type:text" json:"cancel_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Accommodation *Accommodation `gorm:"foreignKey:AccommodationID;constraint:OnDelete:CASCADE" json:"accommodation,omitempty"`
}

func (Reservation) TableName() string { return "reservations" }

// Active reports whether the reservation counts against the range-exclusion
// invariant.
func (r *Reservation) Active() bool {
	return r.Status == ReservationPreReserved || r.Status == ReservationConfirmed
}

func (r *Reservation) Expired(now time.Time) bool {
	return r.Status == ReservationPreReserved && r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}
