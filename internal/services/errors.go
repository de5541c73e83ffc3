package services

import (
	"errors"
	"fmt"
)

// ErrNoEntities rejects a batch that names nothing to synchronize.
var ErrNoEntities = errors.New("no entities specified for synchronization")

// ValidationError aborts a batch before any structural step runs.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid synchronization request: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DropError reports a failed drop. Its transaction has been rolled back.
type DropError struct {
	Entity string
	Table  string
	Err    error
}

func (e *DropError) Error() string {
	return fmt.Sprintf("failed to drop table %s for entity %s: %v", e.Table, e.Entity, e.Err)
}

func (e *DropError) Unwrap() error {
	return e.Err
}

// SyncError reports a failed create or alter of one entity.
type SyncError struct {
	Entity string
	Table  string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("failed to sync entity %s (table %s): %v", e.Entity, e.Table, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
