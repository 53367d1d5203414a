package sync

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// retryInitialInterval and retryMaxInterval bound the in-pass backoff
// between attempts for one record. Cross-pass spacing comes from the
// scheduler, so the in-pass waits stay short.
const (
	retryInitialInterval = 500 * time.Millisecond
	retryMaxInterval     = 5 * time.Second
)

// withRetry runs op with exponential backoff, making at most maxAttempts
// calls. op signals non-retryable failures by returning backoff.Permanent;
// notify runs after each failed attempt that will be retried, before the
// wait, so callers can persist retry bookkeeping crash-safely.
func withRetry[T any](ctx context.Context, op backoff.Operation[T], maxAttempts uint, notify backoff.Notify) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxAttempts),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}
	return backoff.Retry(ctx, op, opts...)
}
