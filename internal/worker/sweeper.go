package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"cabanas/internal/domain"
	"cabanas/internal/notify"
	"cabanas/internal/pkg/metrics"
)

type ReservationStore interface {
	ExpireBatch(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error)
	RemindersDue(ctx context.Context, now time.Time, window time.Duration, limit int) ([]domain.Reservation, error)
	MarkReminded(ctx context.Context, id int64) (bool, error)
}

// IdempotencyStore purges cached responses past their TTL. Delete-on-read in
// the middleware only covers fingerprints that are retried; the sweeper picks
// up the rest.
type IdempotencyStore interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type SweeperConfig struct {
	Interval       time.Duration
	ReminderWindow time.Duration
	BatchSize      int
}

// Sweeper periodically cancels lapsed pre-reservations and sends expiry
// reminders for holds about to lapse. It is safe to run multiple instances:
// all mutations are conditional updates, duplicates just see zero rows.
type Sweeper struct {
	store    ReservationStore
	idem     IdempotencyStore
	notifier *notify.BestEffort
	metrics  *metrics.Metrics
	log      *zap.Logger
	cfg      SweeperConfig

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewSweeper(store ReservationStore, idem IdempotencyStore, notifier *notify.BestEffort, m *metrics.Metrics, log *zap.Logger, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	return &Sweeper{
		store:    store,
		idem:     idem,
		notifier: notifier,
		metrics:  m,
		log:      log,
		cfg:      cfg,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. The first sweep runs immediately, before the
// first tick.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	s.log.Info("sweeper started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("reminder_window", s.cfg.ReminderWindow),
		zap.Int("batch_size", s.cfg.BatchSize),
	)
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		<-s.done
		s.log.Info("sweeper stopped")
	})
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one expiry pass, one reminder pass and one idempotency purge.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()
	s.expirePass(ctx, start)
	s.remindPass(ctx, start)
	s.purgePass(ctx, start)
	s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
}

func (s *Sweeper) expirePass(ctx context.Context, now time.Time) {
	for {
		expired, err := s.store.ExpireBatch(ctx, now, s.cfg.BatchSize)
		if err != nil {
			s.log.Error("expire pass failed", zap.Error(err))
			return
		}
		if len(expired) == 0 {
			return
		}

		s.metrics.PreReservationsExpired.Add(float64(len(expired)))
		s.log.Info("expired pre-reservations", zap.Int("count", len(expired)))

		for _, res := range expired {
			s.notifier.Send(ctx, notify.Event{
				Type:            notify.EventExpired,
				ReservationCode: res.Code,
				GuestName:       res.GuestName,
				GuestPhone:      res.GuestPhone,
				GuestEmail:      res.GuestEmail,
			})
		}
		// A full batch means more rows may be waiting.
		if len(expired) < s.cfg.BatchSize {
			return
		}
	}
}

func (s *Sweeper) purgePass(ctx context.Context, now time.Time) {
	if s.idem == nil {
		return
	}
	purged, err := s.idem.PurgeExpired(ctx, now)
	if err != nil {
		s.log.Error("idempotency purge failed", zap.Error(err))
		return
	}
	if purged > 0 {
		s.log.Info("purged idempotency records", zap.Int64("count", purged))
	}
}

func (s *Sweeper) remindPass(ctx context.Context, now time.Time) {
	if s.cfg.ReminderWindow <= 0 {
		return
	}
	due, err := s.store.RemindersDue(ctx, now, s.cfg.ReminderWindow, s.cfg.BatchSize)
	if err != nil {
		s.log.Error("reminder pass failed", zap.Error(err))
		return
	}

	for _, res := range due {
		ok, err := s.store.MarkReminded(ctx, res.ID)
		if err != nil {
			s.log.Error("mark reminded failed", zap.String("code", res.Code), zap.Error(err))
			continue
		}
		if !ok {
			// Another instance got there first.
			continue
		}
		s.metrics.RemindersSent.Inc()

		var expiresAt string
		if res.ExpiresAt != nil {
			expiresAt = res.ExpiresAt.Format(time.RFC3339)
		}
		s.notifier.Send(ctx, notify.Event{
			Type:            notify.EventReminder,
			ReservationCode: res.Code,
			GuestName:       res.GuestName,
			GuestPhone:      res.GuestPhone,
			GuestEmail:      res.GuestEmail,
			ExpiresAt:       expiresAt,
		})
	}
}
