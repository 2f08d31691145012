package service

import (
	"context"
	"fmt"
	"time"
)

// Backoff is an exponential retry schedule: the n-th retry waits BaseDelay*2^(n-1)
type Backoff struct {
	BaseDelay  time.Duration
	MaxRetries int
}

// Delay returns the wait before retry number attempt (1-based)
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return b.BaseDelay << uint(attempt-1)
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls op until it succeeds, returns an error retryable rejects, or
// MaxRetries retries have been spent. Retries are sequential.
func Retry(ctx context.Context, b Backoff, sleep Sleeper, retryable func(error) bool, op func(ctx context.Context, attempt int) error) error {
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, b.Delay(attempt)); err != nil {
				return err
			}
		}

		err := op(ctx, attempt)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt >= b.MaxRetries {
			return fmt.Errorf("giving up after %d retries: %w", attempt, err)
		}
	}
}
