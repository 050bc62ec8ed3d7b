package messaging_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	policy := messaging.RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		Sleep:       noSleep,
	}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return apperrors.Transient("broker unavailable", nil)
		}
		return nil
	})

	assert.Nil(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	policy := messaging.RetryPolicy{MaxAttempts: 3, Sleep: noSleep}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return apperrors.Transient("still down", nil)
	})

	assert.NotNil(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_TerminalErrorStopsImmediately(t *testing.T) {
	policy := messaging.RetryPolicy{
		MaxAttempts: 5,
		Sleep:       noSleep,
		ShouldRetry: apperrors.IsRetryable,
	}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return apperrors.StateConflict("illegal transition")
	})

	assert.Equal(t, apperrors.KindStateConflict, apperrors.KindOf(err))
	assert.Equal(t, 1, calls)
}

func TestRetry_BackoffIsBoundedByMaxDelay(t *testing.T) {
	var delays []time.Duration
	policy := messaging.RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    250 * time.Millisecond,
		Jitter:      func(d time.Duration) time.Duration { return d },
		Sleep: func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	_ = policy.Do(context.Background(), func() error {
		return apperrors.Transient("down", nil)
	})

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		250 * time.Millisecond,
		250 * time.Millisecond,
	}, delays)
}

func TestRetry_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := messaging.RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   time.Millisecond,
		Sleep:       noSleep,
	}

	calls := 0
	err := policy.Do(ctx, func() error {
		calls++
		cancel()
		return apperrors.Transient("down", nil)
	})

	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 1, calls)
}
