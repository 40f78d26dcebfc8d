package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for absent or soft-deleted records.
	ErrNotFound      = errors.New("not found")
	ErrPartyNotFound = fmt.Errorf("party %w", ErrNotFound)
	ErrEntryNotFound = fmt.Errorf("entry %w", ErrNotFound)

	ErrInvalidDirectionPairing = errors.New("direction does not match party kind")
	ErrValidation              = errors.New("validation failed")
	ErrInvalidAmount           = fmt.Errorf("%w: amount must not be negative", ErrValidation)
	ErrMissingActor            = fmt.Errorf("%w: actor is required", ErrValidation)

	// ErrPersistence wraps failures of the underlying store.
	ErrPersistence = errors.New("persistence failure")
	// ErrVersionConflict is returned when a party changed between read and write.
	ErrVersionConflict = fmt.Errorf("%w: party was modified concurrently", ErrPersistence)

	// ErrAuditWrite marks a committed mutation whose audit record could not be stored.
	ErrAuditWrite = errors.New("audit record not written")
)

// AuditWriteError reports that the mutation committed but is unaudited.
type AuditWriteError struct {
	TargetKind TargetKind
	TargetID   string
	Err        error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("%s %s committed but unaudited: %v", e.TargetKind, e.TargetID, e.Err)
}

func (e *AuditWriteError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrAuditWrite) hold for any AuditWriteError.
func (e *AuditWriteError) Is(target error) bool {
	return target == ErrAuditWrite
}

// NewPersistenceError wraps a store failure for operation op.
func NewPersistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
