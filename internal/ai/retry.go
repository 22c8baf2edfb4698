package ai

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// withRetry retries fn on retryable *Error kinds with jittered exponential
// backoff, at least 3 attempts total, per spec §4.4.
func withRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0.3
	bo := backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx)

	var result T
	err := backoff.Retry(func() error {
		res, err := fn()
		if err == nil {
			result = res
			return nil
		}
		var aiErr *Error
		if errors.As(err, &aiErr) && aiErr.Retryable() {
			return err
		}
		return backoff.Permanent(err)
	}, bo)
	return result, err
}
