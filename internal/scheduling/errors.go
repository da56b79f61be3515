package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrSlotUnavailable signals a business conflict: the requested date/time is
// already held by another scheduled appointment. Callers should offer an
// alternative, not retry.
var ErrSlotUnavailable = errors.New("scheduling: slot unavailable")

// ErrNotFound signals a lookup miss by id.
var ErrNotFound = errors.New("scheduling: not found")

// ValidationError reports a malformed or out-of-policy input field. It is
// always recoverable by asking the caller to restate and is never persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scheduling: invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError constructs a field-level validation failure.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidTransitionError reports an attempt to move an appointment or
// follow-up out of a terminal status, or backward. It indicates adapter
// misuse and is logged as a warning.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("scheduling: invalid %s transition %s -> %s", e.Entity, e.From, e.To)
}

// StorageError wraps infrastructure faults from the store. Retryable errors
// (timeouts, unavailability) may be retried a bounded number of times at the
// adapter boundary.
type StorageError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("scheduling: storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient storage fault worth retrying.
// Errors that did not pass through storageErr (the analytics writes share the
// same fault classes) are classified by their underlying cause.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StorageError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		pgconn.Timeout(err) ||
		pgconn.SafeToRetry(err)
}

func storageErr(op string, err error) error {
	retryable := errors.Is(err, context.DeadlineExceeded) ||
		pgconn.Timeout(err) ||
		pgconn.SafeToRetry(err)
	return &StorageError{Op: op, Err: err, Retryable: retryable}
}
