package application

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sapph1re/blindboard/oracle"
)

func fastBackoff(attempts int) Backoff {
	return Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond, MaxAttempts: attempts}
}

func TestWithRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), clock.New(), fastBackoff(5), nil, func() error {
		calls++
		return &oracle.StatusError{Code: 422, Message: "not decryptable"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var re *RetryError
	assert.False(t, errors.As(err, &re))
}

func TestWithRetryRecoversFromTransient(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), clock.New(), fastBackoff(5), nil, func() error {
		calls++
		if calls < 3 {
			return &oracle.StatusError{Code: 503, Message: "unavailable"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), clock.New(), fastBackoff(3), nil, func() error {
		calls++
		return &oracle.StatusError{Code: 500, Message: "boom"}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var re *RetryError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 3, re.Attempts)

	var se *oracle.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 500, se.Code)
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetry(ctx, clock.New(), Backoff{Base: time.Hour, Max: time.Hour, MaxAttempts: 3}, nil, func() error {
		return &oracle.StatusError{Code: 503, Message: "unavailable"}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Max: 300 * time.Millisecond, MaxAttempts: 10}
	assert.Equal(t, 100*time.Millisecond, b.delay(1, nil))
	assert.Equal(t, 200*time.Millisecond, b.delay(2, nil))
	assert.Equal(t, 300*time.Millisecond, b.delay(3, nil))
	assert.Equal(t, 300*time.Millisecond, b.delay(9, nil))
}

func TestBackoffJitterStaysBounded(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Max: time.Second, MaxAttempts: 5, JitterFrac: 0.3}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		d := b.delay(1, rng)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 130*time.Millisecond)
	}
}
