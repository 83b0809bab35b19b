package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabanas/internal/pkg/metrics"
)

func TestKey_Format(t *testing.T) {
	checkIn := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	checkOut := time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "lock:acc:7:2026-09-04:2026-09-06", Key(7, checkIn, checkOut))
}

// Integration tests below need a running Redis; they skip otherwise.
func newTestManager(t *testing.T) *Manager {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/15"
	}
	client, err := NewClient(url)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	return NewManager(client, metrics.NewWithRegistry(prometheus.NewRegistry()))
}

func TestAcquire_MutualExclusion(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	key := Key(1001, time.Now(), time.Now().AddDate(0, 0, 2))

	l, err := m.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	defer l.Release(ctx)

	_, err = m.Acquire(ctx, key, 5*time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestRelease_AllowsReacquire(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	key := Key(1002, time.Now(), time.Now().AddDate(0, 0, 2))

	l, err := m.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx))

	l2, err := m.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	l2.Release(ctx)
}

func TestRelease_RejectsForeignToken(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	key := Key(1003, time.Now(), time.Now().AddDate(0, 0, 2))

	l, err := m.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	defer l.Release(ctx)

	stranger := m.Resume(key, "not-the-owner")
	assert.ErrorIs(t, stranger.Release(ctx), ErrNotOwned)

	// The real owner still holds the key.
	_, err = m.Acquire(ctx, key, 5*time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestExtend_RefreshesTTL(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	key := Key(1004, time.Now(), time.Now().AddDate(0, 0, 2))

	l, err := m.Acquire(ctx, key, time.Second)
	require.NoError(t, err)
	defer l.Release(ctx)

	require.NoError(t, l.Extend(ctx, 10*time.Second))

	ttl, err := m.client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 5*time.Second)
}

func TestExtend_RejectsForeignToken(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	key := Key(1005, time.Now(), time.Now().AddDate(0, 0, 2))

	l, err := m.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	defer l.Release(ctx)

	stranger := m.Resume(key, "not-the-owner")
	assert.ErrorIs(t, stranger.Extend(ctx, 10*time.Second), ErrNotOwned)
}
