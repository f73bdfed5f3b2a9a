package conn

import (
	"context"
	"fmt"
	"time"

	sqlerrors "github.com/FocuswithJustin/sqlclient/core/errors"
)

// RetryPolicy bounds the retries of a statement that failed with SQLITE_BUSY.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns the policy the engine adapters use unless
// configured otherwise.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  50,
		InitialDelay: 2 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
	}
}

// OnRetry is called before each retry with the attempt that failed and the
// delay about to be waited.
type OnRetry func(attempt int, delay time.Duration, err error)

// Retry runs fn until it succeeds, fails with an error other than
// SQLITE_BUSY, or MaxAttempts is reached. The delay doubles after each busy
// failure up to MaxDelay. A done ctx ends the wait; the returned error then
// matches both ctx.Err() and the last busy error.
func Retry(ctx context.Context, policy RetryPolicy, onRetry OnRetry, fn func() error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	delay := policy.InitialDelay

	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !sqlerrors.IsBusy(err) || attempt >= policy.MaxAttempts {
			return err
		}

		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ctx.Err(), err)
		case <-timer.C:
		}

		delay *= 2
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
}
