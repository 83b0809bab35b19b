package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrRetriesExhausted wraps the last error once every attempt has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// HTTPError carries a provider response code through the retry classifier.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// PermanentError marks an error that must never be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the retrier fails fast on it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Transient reports whether err is worth retrying. Network timeouts,
// connection failures, 429 and 5xx responses are transient; other 4xx and
// explicitly permanent errors are not. Unknown errors default to transient.
func Transient(err error) bool {
	var perm *PermanentError
	if errors.As(err, &perm) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		if httpErr.StatusCode >= 500 {
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return true
}

// Backoff returns the delay before the next attempt: base doubled per attempt,
// capped at max, with ±20% jitter so synchronized instances do not retry in
// lockstep.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	d := base << uint(attempt)
	if d > max || d <= 0 {
		d = max
	}
	jitter := time.Duration((rand.Float64()*2 - 1) * 0.2 * float64(d))
	d += jitter
	if d < 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	return d
}

type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Log         *zap.Logger
}

func NewRetrier(maxAttempts int, log *zap.Logger) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retrier{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Second,
		MaxDelay:    32 * time.Second,
		Log:         log,
	}
}

// Do runs fn until it succeeds, fails permanently, or attempts run out.
func (r *Retrier) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < r.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				r.Log.Info("retry succeeded",
					zap.String("operation", name),
					zap.Int("attempt", attempt+1),
				)
			}
			return nil
		}
		lastErr = err

		if !Transient(err) {
			r.Log.Warn("permanent error, not retrying",
				zap.String("operation", name),
				zap.Error(err),
			)
			return err
		}
		if attempt == r.MaxAttempts-1 {
			break
		}

		delay := Backoff(attempt, r.BaseDelay, r.MaxDelay)
		r.Log.Warn("attempt failed, backing off",
			zap.String("operation", name),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", r.MaxAttempts),
			zap.Duration("next_retry_in", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	r.Log.Error("retries exhausted",
		zap.String("operation", name),
		zap.Int("attempts", r.MaxAttempts),
		zap.Error(lastErr),
	)
	return fmt.Errorf("%s: %w: %w", name, ErrRetriesExhausted, lastErr)
}
