package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"cabanas/internal/pkg/metrics"
)

// ErrBreakerOpen is returned without attempting the call while the breaker is
// open.
var ErrBreakerOpen = errors.New("circuit breaker open")

type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

type BreakerConfig struct {
	// Consecutive failures that open the breaker.
	FailureThreshold int
	// How long the breaker stays open before probing.
	Cooldown time.Duration
	// Consecutive half-open successes that close it again.
	SuccessThreshold int
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 60 * time.Second
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	return c
}

// Breaker guards one named external dependency. The mutex protects only the
// state counters; the guarded call itself runs outside it.
type Breaker struct {
	name    string
	cfg     BreakerConfig
	log     *zap.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

func NewBreaker(name string, cfg BreakerConfig, m *metrics.Metrics, log *zap.Logger) *Breaker {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Breaker{
		name:    name,
		cfg:     cfg.withDefaults(),
		log:     log,
		metrics: m,
	}
	b.setStateMetric()
	return b
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do executes fn under the breaker. While open it rejects immediately with
// ErrBreakerOpen.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.allow() {
		if b.metrics != nil {
			b.metrics.BreakerRejections.WithLabelValues(b.name).Inc()
		}
		return ErrBreakerOpen
	}

	err := fn(ctx)
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if time.Since(b.lastFailure) >= b.cfg.Cooldown {
			b.transition(StateHalfOpen)
			b.successes = 0
			return true
		}
		return false
	}
	return true
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
			b.failures = 0
		}
	case StateClosed:
		b.failures = 0
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	switch b.state {
	case StateHalfOpen:
		// Any failure during the probe period reopens.
		b.transition(StateOpen)
		b.successes = 0
	case StateClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	}
}

// transition must be called with the mutex held.
func (b *Breaker) transition(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.setStateMetric()
	if b.metrics != nil {
		b.metrics.BreakerTransitions.WithLabelValues(b.name, from.String(), to.String()).Inc()
	}
	b.log.Warn("circuit breaker state change",
		zap.String("name", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("failures", b.failures),
	)
}

func (b *Breaker) setStateMetric() {
	if b.metrics == nil {
		return
	}
	b.metrics.BreakerState.WithLabelValues(b.name).Set(float64(b.state))
}
