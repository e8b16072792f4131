package application

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
)

// RetryError wraps a failure that survived the whole retry budget.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// retryable is implemented by errors that can classify themselves, such as
// the oracle's StatusError.
type retryable interface {
	Retryable() bool
}

func isRetryable(err error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}

// Backoff is a bounded exponential backoff with jitter.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
	// JitterFrac adds up to this fraction of random extra delay per sleep.
	JitterFrac float64
}

// DefaultBackoff matches the protocol's retry policy: base delay doubling
// per attempt, capped, with up to 30% jitter.
func DefaultBackoff() Backoff {
	return Backoff{Base: 500 * time.Millisecond, Max: 8 * time.Second, MaxAttempts: 5, JitterFrac: 0.3}
}

// delay returns the sleep before retry number attempt (counting from 1).
func (b Backoff) delay(attempt int, rng *rand.Rand) time.Duration {
	d := b.Base << uint(attempt-1)
	if d > b.Max || d <= 0 {
		d = b.Max
	}
	if b.JitterFrac > 0 && rng != nil {
		d += time.Duration(rng.Float64() * b.JitterFrac * float64(d))
	}
	return d
}

// withRetry runs op, retrying transient failures per the backoff schedule.
// Non-retryable failures propagate immediately; exhausting the budget wraps
// the last failure in a RetryError.
func withRetry(ctx context.Context, c clock.Clock, b Backoff, rng *rand.Rand, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == b.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.After(b.delay(attempt, rng)):
		}
	}
	return &RetryError{Attempts: b.MaxAttempts, Err: lastErr}
}
