package store

import (
	"errors"
	"fmt"
)

// ErrLockNotHeld is returned when a changeset is executed without holding the migration lock
var ErrLockNotHeld = errors.New("migration lock is not held by this session")

// ExecutionError wraps a failure to apply a changeset script
type ExecutionError struct {
	Changeset string // formatted file:name
	Err       error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("failed to execute changeset %s: %v", e.Changeset, e.Err)
}

// Unwrap returns the driver error
func (e *ExecutionError) Unwrap() error {
	return e.Err
}
