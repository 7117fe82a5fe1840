package shared

import (
	"context"
	"time"

	"github.com/iris-crm/iris/internal/crm"
)

// RetryAttempts bounds how often a transient failure is re-attempted.
const RetryAttempts = 3

// Retry runs fn up to attempts times, backing off between tries. Only
// errors wrapping crm.ErrRetryable are retried; validation and state
// machine errors surface immediately.
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = RetryAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !crm.IsRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff << i):
		}
	}
	return err
}
