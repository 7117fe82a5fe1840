package shared

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iris-crm/iris/internal/crm"
)

func TestRetryTransientThenSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: connection reset", crm.ErrRetryable)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryDeterministicErrorImmediate(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		return fmt.Errorf("%w: bad status", crm.ErrValidation)
	})
	require.ErrorIs(t, err, crm.ErrValidation)
	require.Equal(t, 1, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		return fmt.Errorf("%w: still down", crm.ErrRetryable)
	})
	require.ErrorIs(t, err, crm.ErrRetryable)
	require.Equal(t, 3, calls)
}

func TestRetryHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, 3, 10*time.Second, func(context.Context) error {
		return fmt.Errorf("%w: still down", crm.ErrRetryable)
	})
	require.ErrorIs(t, err, context.Canceled)
}
