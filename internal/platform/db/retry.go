package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iris-crm/iris/internal/crm"
)

// IsTransient reports whether err looks like a transient I/O failure worth
// retrying: network timeouts, dropped connections, and Postgres errors the
// driver declares safe to retry. Constraint violations and other SQL errors
// are deterministic and report false.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions; 57P01: admin shutdown;
		// 40001/40P01: serialization failure and deadlock.
		switch pgErr.Code {
		case "40001", "40P01", "57P01":
			return true
		}
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
			return true
		}
	}
	return false
}

// WrapTransient tags transient failures with crm.ErrRetryable so callers can
// retry them. Deterministic errors pass through unchanged.
func WrapTransient(err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return fmt.Errorf("%w: %w", crm.ErrRetryable, err)
	}
	return err
}
