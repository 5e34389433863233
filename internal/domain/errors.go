package domain

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks across adapter boundaries.
var (
	ErrValidation    = errors.New("validation error")
	ErrStateConflict = errors.New("state conflict")
	ErrNotFound      = errors.New("not found")
	ErrConsistency   = errors.New("consistency recovery")
)

// ValidationError reports malformed input. Never silently corrected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StateConflictError reports an illegal lifecycle transition or a duplicate
// that violates a uniqueness rule.
type StateConflictError struct {
	Reason string
}

func (e *StateConflictError) Error() string        { return "state conflict: " + e.Reason }
func (e *StateConflictError) Is(target error) bool { return target == ErrStateConflict }

// NotFoundError reports a reference to an absent or tombstoned entity.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string        { return fmt.Sprintf("%s %d not found", e.Kind, e.ID) }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConsistencyError reports an aggregate that could not be fully reconciled
// from its source rows. The aggregate is rebuilt from the rows that did
// reconcile; the error is surfaced so the condition gets logged.
type ConsistencyError struct {
	Aggregate string
	ID        int64
	Reason    string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s %d could not be reconciled: %s", e.Aggregate, e.ID, e.Reason)
}

func (e *ConsistencyError) Is(target error) bool { return target == ErrConsistency }
