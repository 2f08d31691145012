package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{BaseDelay: time.Second, MaxRetries: 3}

	assert.Equal(t, time.Duration(0), b.Delay(0))
	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 4*time.Second, b.Delay(3))
}

func TestRetrySucceedsAfterTwoRateLimits(t *testing.T) {
	d := 100 * time.Millisecond
	rec := &recordingSleeper{}
	calls := 0

	err := Retry(context.Background(), Backoff{BaseDelay: d, MaxRetries: 3}, rec.sleep, isRateLimited,
		func(ctx context.Context, attempt int) error {
			assert.Equal(t, calls, attempt)
			calls++
			if calls <= 2 {
				return ErrRateLimited
			}
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{d, 2 * d}, rec.delays)
}

func TestRetryGivesUpAtCeiling(t *testing.T) {
	d := 10 * time.Millisecond
	rec := &recordingSleeper{}
	calls := 0

	err := Retry(context.Background(), Backoff{BaseDelay: d, MaxRetries: 3}, rec.sleep, isRateLimited,
		func(ctx context.Context, attempt int) error {
			calls++
			return ErrRateLimited
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{d, 2 * d, 4 * d}, rec.delays)
}

func TestRetryDoesNotRetryOtherErrors(t *testing.T) {
	rec := &recordingSleeper{}
	boom := errors.New("boom")
	calls := 0

	err := Retry(context.Background(), Backoff{BaseDelay: time.Second, MaxRetries: 3}, rec.sleep, isRateLimited,
		func(ctx context.Context, attempt int) error {
			calls++
			return boom
		})

	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Retry(ctx, Backoff{BaseDelay: time.Hour, MaxRetries: 3}, nil, isRateLimited,
		func(ctx context.Context, attempt int) error {
			calls++
			cancel()
			return ErrRateLimited
		})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryZeroRetries(t *testing.T) {
	rec := &recordingSleeper{}
	err := Retry(context.Background(), Backoff{BaseDelay: time.Second}, rec.sleep, isRateLimited,
		func(ctx context.Context, attempt int) error { return ErrRateLimited })

	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Empty(t, rec.delays)
}
