package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cabanas/internal/pkg/metrics"
)

var (
	ErrNotAcquired = errors.New("lock not acquired")
	ErrNotOwned    = errors.New("lock not owned")
)

// Compare-and-act scripts. The ownership check and the mutation must run as one
// atomic unit server-side; a plain GET followed by DEL/EXPIRE would race with a
// competing owner after TTL expiry.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)
)

// Key builds the lock key for an accommodation/date-range pair.
func Key(accommodationID int64, checkIn, checkOut time.Time) string {
	return fmt.Sprintf("lock:acc:%d:%s:%s",
		accommodationID,
		checkIn.Format("2006-01-02"),
		checkOut.Format("2006-01-02"),
	)
}

// Lock is a handle over an acquired (or resumed) ownership token.
type Lock struct {
	client *redis.Client
	K      string
	Value  string
}

type Manager struct {
	client  *redis.Client
	metrics *metrics.Metrics
}

func NewManager(client *redis.Client, m *metrics.Metrics) *Manager {
	return &Manager{client: client, metrics: m}
}

// Acquire sets the key only if absent (SET NX EX). ErrNotAcquired means another
// holder owns it; any other error means the lock store itself failed, which the
// caller may treat per its fail-open policy.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	value := uuid.New().String()

	start := time.Now()
	ok, err := m.client.SetNX(ctx, key, value, ttl).Result()
	m.observe("acquire", start, err)
	if err != nil {
		return nil, fmt.Errorf("lock acquire: %w", err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Lock{client: m.client, K: key, Value: value}, nil
}

// Resume rebuilds a lock handle from a previously recorded ownership token,
// e.g. to extend the hold of an existing pre-reservation.
func (m *Manager) Resume(key, value string) *Lock {
	return &Lock{client: m.client, K: key, Value: value}
}

func (m *Manager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Token returns the ownership value stored under the key.
func (l *Lock) Token() string { return l.Value }

// Release deletes the key only if this handle still owns it.
func (l *Lock) Release(ctx context.Context) error {
	res, err := releaseScript.Run(ctx, l.client, []string{l.K}, l.Value).Int()
	if err != nil {
		return fmt.Errorf("lock release: %w", err)
	}
	if res == 0 {
		return ErrNotOwned
	}
	return nil
}

// Extend resets the TTL only if this handle still owns the key.
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	res, err := extendScript.Run(ctx, l.client, []string{l.K}, l.Value, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("lock extend: %w", err)
	}
	if res == 0 {
		return ErrNotOwned
	}
	return nil
}

func (m *Manager) observe(op string, start time.Time, err error) {
	if m.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.metrics.LockDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

// NewClient builds a Redis client from a redis:// URL.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}
