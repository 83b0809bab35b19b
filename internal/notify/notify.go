package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"cabanas/internal/resilience"
)

// Event kinds sent to guests.
const (
	EventPreReserved     = "pre_reserved"
	EventReminder        = "reminder"
	EventExpired         = "expired"
	EventPaymentApproved = "payment_approved"
	EventPaymentRejected = "payment_rejected"
	EventPaymentPending  = "payment_pending"
)

// Event is the outbound guest notification payload. Formatting and channel
// routing (WhatsApp, email) happen in the downstream messaging service; this
// core only delivers structured facts.
type Event struct {
	Type              string  `json:"type"`
	ReservationCode   string  `json:"reservation_code"`
	GuestName         string  `json:"guest_name"`
	GuestPhone        string  `json:"guest_phone"`
	GuestEmail        string  `json:"guest_email,omitempty"`
	AccommodationName string  `json:"accommodation_name,omitempty"`
	CheckIn           string  `json:"check_in,omitempty"`
	CheckOut          string  `json:"check_out,omitempty"`
	Amount            float64 `json:"amount,omitempty"`
	ExpiresAt         string  `json:"expires_at,omitempty"`
}

type Sender interface {
	Send(ctx context.Context, ev Event) error
}

// HTTPSender posts events to the messaging gateway, guarded by the retry and
// circuit-breaker primitives.
type HTTPSender struct {
	url     string
	client  *http.Client
	retrier *resilience.Retrier
	breaker *resilience.Breaker
}

func NewHTTPSender(url string, timeout time.Duration, retrier *resilience.Retrier, breaker *resilience.Breaker) *HTTPSender {
	return &HTTPSender{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		retrier: retrier,
		breaker: breaker,
	}
}

func (s *HTTPSender) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return resilience.Permanent(err)
	}

	return s.retrier.Do(ctx, "notify_send", func(ctx context.Context) error {
		return s.breaker.Do(ctx, func(ctx context.Context) error {
			return s.post(ctx, body)
		})
	})
}

func (s *HTTPSender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &resilience.HTTPError{StatusCode: resp.StatusCode, Body: string(b)}
}

// NoopSender is used when no messaging gateway is configured.
type NoopSender struct{}

func (NoopSender) Send(context.Context, Event) error { return nil }

// BestEffort makes the fire-and-forget contract explicit: Send never returns
// an error, it logs and drops failures so a notification problem can never
// mask or roll back the state transition that triggered it.
type BestEffort struct {
	sender Sender
	log    *zap.Logger
}

func NewBestEffort(sender Sender, log *zap.Logger) *BestEffort {
	if log == nil {
		log = zap.NewNop()
	}
	return &BestEffort{sender: sender, log: log}
}

func (b *BestEffort) Send(ctx context.Context, ev Event) {
	if err := b.sender.Send(ctx, ev); err != nil {
		b.log.Warn("notification dropped",
			zap.String("type", ev.Type),
			zap.String("code", ev.ReservationCode),
			zap.Error(err),
		)
	}
}

// BreakerName identifies the messaging gateway dependency in breaker metrics.
const BreakerName = "messaging_gateway"

var _ Sender = (*HTTPSender)(nil)
