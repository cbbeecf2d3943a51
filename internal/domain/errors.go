package domain

import (
	"errors"
	"fmt"
)

// NotFoundError names the entity a caller referenced that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NewNotFound builds a NotFoundError for the given entity and id.
func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ErrConflict is reserved for concurrent-modification conflicts. The current
// core never raises it; the idempotency upsert resolves races by no-op.
var ErrConflict = errors.New("conflict")

// ErrAlreadyProcessed aborts a guarded transaction whose event key was
// already recorded. Services translate it into a no-op result, so callers
// never observe it.
var ErrAlreadyProcessed = errors.New("event already processed")
