package payment

import "cabanas/internal/domain"

// EventRequest is the normalized webhook payload. external_reference carries
// the reservation code the payment was initiated for; it can be absent or
// point at a reservation this instance has not seen yet.
type EventRequest struct {
	ExternalPaymentID string  `json:"external_payment_id" binding:"required"`
	ExternalReference string  `json:"external_reference"`
	Status            string  `json:"status" binding:"required"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	Provider          string  `json:"provider"`
}

// Processing outcomes.
const (
	OutcomeCreated   = "created"
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeDuplicate = "duplicate"
)

type Result struct {
	Outcome string          `json:"outcome"`
	Payment *domain.Payment `json:"payment,omitempty"`
}
