package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/iris-crm/iris/internal/crm"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestWrapTransient(t *testing.T) {
	wrapped := WrapTransient(&pgconn.PgError{Code: "40001"})
	require.ErrorIs(t, wrapped, crm.ErrRetryable)

	deterministic := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	got := WrapTransient(deterministic)
	require.Equal(t, deterministic, got)
	require.NotErrorIs(t, got, crm.ErrRetryable)

	require.NoError(t, WrapTransient(nil))
}
