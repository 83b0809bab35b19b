package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments the reservation engine emits.
type Metrics struct {
	// Reservation lifecycle transitions, labeled by resulting status.
	ReservationsTotal *prometheus.CounterVec

	// Lock operation latency (operation: acquire/release/extend, status: success/failed).
	LockDuration *prometheus.HistogramVec

	// Sweeper counters.
	PreReservationsExpired prometheus.Counter
	RemindersSent          prometheus.Counter
	SweepDuration          prometheus.Histogram

	// Payment webhook processing (result: created, updated, duplicate, invalid).
	PaymentEventsTotal *prometheus.CounterVec

	// Idempotency cache (result: hit, miss, error).
	IdempotencyTotal *prometheus.CounterVec

	// Circuit breaker per named dependency.
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
	BreakerRejections  *prometheus.CounterVec
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservations_total",
				Help: "Total number of reservation creation attempts by outcome",
			},
			[]string{"status"},
		),
		LockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		PreReservationsExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "prereservations_expired_total",
				Help: "Pre-reservations cancelled by the expiration sweeper",
			},
		),
		RemindersSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "prereservation_reminders_sent_total",
				Help: "Expiry reminders sent to guests",
			},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "prereservation_sweep_duration_seconds",
				Help:    "Duration of one sweeper cycle",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		PaymentEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_events_total",
				Help: "Inbound payment webhook events by processing result",
			},
			[]string{"result"},
		),
		IdempotencyTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idempotency_requests_total",
				Help: "Idempotency cache lookups by result",
			},
			[]string{"result"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
			},
			[]string{"name"},
		),
		BreakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circuit_breaker_transitions_total",
				Help: "Circuit breaker state transitions",
			},
			[]string{"name", "from", "to"},
		),
		BreakerRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circuit_breaker_rejections_total",
				Help: "Calls rejected while the breaker was open",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.ReservationsTotal,
		m.LockDuration,
		m.PreReservationsExpired,
		m.RemindersSent,
		m.SweepDuration,
		m.PaymentEventsTotal,
		m.IdempotencyTotal,
		m.BreakerState,
		m.BreakerTransitions,
		m.BreakerRejections,
	)
	return m
}
