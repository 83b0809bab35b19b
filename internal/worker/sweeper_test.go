package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"cabanas/internal/domain"
	"cabanas/internal/notify"
	"cabanas/internal/pkg/metrics"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ExpireBatch(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockStore) RemindersDue(ctx context.Context, now time.Time, window time.Duration, limit int) ([]domain.Reservation, error) {
	args := m.Called(ctx, now, window, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockStore) MarkReminded(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// recordingSender collects events so tests can assert on what was sent.
type recordingSender struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingSender) Send(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSender) byType(t string) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type MockIdemStore struct {
	mock.Mock
}

func (m *MockIdemStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func newTestSweeper(store ReservationStore, sender notify.Sender, cfg SweeperConfig) *Sweeper {
	return NewSweeper(store, nil,
		notify.NewBestEffort(sender, zap.NewNop()),
		metrics.NewWithRegistry(prometheus.NewRegistry()),
		zap.NewNop(),
		cfg)
}

func TestSweep_ExpiresAndNotifies(t *testing.T) {
	store := new(MockStore)
	sender := &recordingSender{}

	expired := []domain.Reservation{
		{ID: 1, Code: "RES260901AAAA01", GuestName: "Ana", GuestPhone: "+54911"},
		{ID: 2, Code: "RES260901AAAA02", GuestName: "Luis", GuestPhone: "+54922"},
	}
	store.On("ExpireBatch", mock.Anything, mock.Anything, 200).Return(expired, nil).Once()
	store.On("RemindersDue", mock.Anything, mock.Anything, 15*time.Minute, 200).
		Return([]domain.Reservation{}, nil)

	sw := newTestSweeper(store, sender, SweeperConfig{
		Interval:       time.Minute,
		ReminderWindow: 15 * time.Minute,
		BatchSize:      200,
	})
	sw.Sweep(context.Background())

	sent := sender.byType(notify.EventExpired)
	assert.Len(t, sent, 2)
	assert.Equal(t, "RES260901AAAA01", sent[0].ReservationCode)
}

func TestSweep_RemindersSkipRowsClaimedElsewhere(t *testing.T) {
	store := new(MockStore)
	sender := &recordingSender{}

	exp := time.Now().Add(10 * time.Minute)
	due := []domain.Reservation{
		{ID: 1, Code: "RES260901BBBB01", ExpiresAt: &exp},
		{ID: 2, Code: "RES260901BBBB02", ExpiresAt: &exp},
	}
	store.On("ExpireBatch", mock.Anything, mock.Anything, 200).Return([]domain.Reservation{}, nil)
	store.On("RemindersDue", mock.Anything, mock.Anything, 15*time.Minute, 200).Return(due, nil)
	store.On("MarkReminded", mock.Anything, int64(1)).Return(true, nil)
	store.On("MarkReminded", mock.Anything, int64(2)).Return(false, nil)

	sw := newTestSweeper(store, sender, SweeperConfig{
		Interval:       time.Minute,
		ReminderWindow: 15 * time.Minute,
		BatchSize:      200,
	})
	sw.Sweep(context.Background())

	sent := sender.byType(notify.EventReminder)
	assert.Len(t, sent, 1)
	assert.Equal(t, "RES260901BBBB01", sent[0].ReservationCode)
}

func TestSweep_DrainsFullBatches(t *testing.T) {
	store := new(MockStore)
	sender := &recordingSender{}

	full := make([]domain.Reservation, 2)
	store.On("ExpireBatch", mock.Anything, mock.Anything, 2).Return(full, nil).Once()
	store.On("ExpireBatch", mock.Anything, mock.Anything, 2).Return([]domain.Reservation{}, nil).Once()
	store.On("RemindersDue", mock.Anything, mock.Anything, time.Minute, 2).
		Return([]domain.Reservation{}, nil)

	sw := newTestSweeper(store, sender, SweeperConfig{
		Interval:       time.Minute,
		ReminderWindow: time.Minute,
		BatchSize:      2,
	})
	sw.Sweep(context.Background())

	store.AssertNumberOfCalls(t, "ExpireBatch", 2)
}

func TestSweep_PurgesExpiredIdempotencyRecords(t *testing.T) {
	store := new(MockStore)
	idem := new(MockIdemStore)

	store.On("ExpireBatch", mock.Anything, mock.Anything, 200).Return([]domain.Reservation{}, nil)
	store.On("RemindersDue", mock.Anything, mock.Anything, time.Minute, 200).
		Return([]domain.Reservation{}, nil)
	idem.On("PurgeExpired", mock.Anything, mock.Anything).Return(int64(3), nil).Once()

	sw := NewSweeper(store, idem,
		notify.NewBestEffort(notify.NoopSender{}, zap.NewNop()),
		metrics.NewWithRegistry(prometheus.NewRegistry()),
		zap.NewNop(),
		SweeperConfig{
			Interval:       time.Minute,
			ReminderWindow: time.Minute,
			BatchSize:      200,
		})
	sw.Sweep(context.Background())

	idem.AssertNumberOfCalls(t, "PurgeExpired", 1)
}

func TestSweeper_StartStop(t *testing.T) {
	store := new(MockStore)
	store.On("ExpireBatch", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.Reservation{}, nil)
	store.On("RemindersDue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.Reservation{}, nil)

	sw := newTestSweeper(store, notify.NoopSender{}, SweeperConfig{
		Interval:       10 * time.Millisecond,
		ReminderWindow: time.Minute,
		BatchSize:      10,
	})
	sw.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	sw.Stop()

	store.AssertCalled(t, "ExpireBatch", mock.Anything, mock.Anything, mock.Anything)
}
