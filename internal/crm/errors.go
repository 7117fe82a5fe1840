// Package crm holds the domain kernel shared by all CRM modules: the
// error taxonomy, actor identity, and role definitions.
package crm

import "errors"

// Domain error taxonomy. Every service operation fails with one of these
// sentinels (wrapped with context via fmt.Errorf %w). Handlers map them to
// HTTP status codes in platform/httpx.
var (
	// ErrValidation indicates bad input shape or values.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition indicates a state machine edge that does not exist.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidState indicates an operation attempted in a state that forbids it.
	ErrInvalidState = errors.New("invalid state for operation")
	// ErrPrecondition indicates a required flag or state is not yet met.
	ErrPrecondition = errors.New("precondition not met")
	// ErrNotFound indicates a referenced record is absent.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a concurrent modification was detected.
	ErrConflict = errors.New("conflicting concurrent modification")
	// ErrRetryable indicates a transient I/O failure that may be retried.
	ErrRetryable = errors.New("transient failure")
)

// IsRetryable reports whether err may be retried. Validation and state
// machine errors are deterministic and never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}
