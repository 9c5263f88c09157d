package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Package apperr defines the error kinds shared by the storage adapter,
// the repositories, and the data client. Callers always receive one of
// these kinds (possibly wrapped), never a silent partial success.

var (
	// ErrNotFound indicates the requested document or line does not exist
	// in the relevant store. Surfaced directly, never compensated.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey indicates an external reference id collision on
	// insert. No partial state is created when this is returned.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrBackendUnavailable indicates a connection-level failure talking
	// to either backing store, after bounded retries where applicable.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Step names one committed action inside a multi-step protocol.
type Step string

const (
	StepMetadataInsert Step = "metadata_insert"
	StepMetadataDelete Step = "metadata_delete"
	StepStateUpdate    Step = "state_update"
	StepBlobWrite      Step = "blob_write"
	StepBlobDelete     Step = "blob_delete"
	StepLinesDelete    Step = "lines_delete"
)

// PartialError reports that a multi-step protocol failed after one or
// more steps had already committed. Completed lists the steps that did
// apply, so a caller or background reconciler can resume; retries of
// completed steps are no-ops per the adapter/repository contracts.
type PartialError struct {
	Op        string
	Completed []Step
	Err       error
}

func (e *PartialError) Error() string {
	done := make([]string, len(e.Completed))
	for i, s := range e.Completed {
		done[i] = string(s)
	}
	return fmt.Sprintf("%s partially failed (completed: %s): %v", e.Op, strings.Join(done, ","), e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// CompensationError reports that a rollback step itself failed, leaving
// an orphan that needs operator attention. Cause is the failure that
// triggered the rollback, CompensationErr the failure of the rollback.
type CompensationError struct {
	Op              string
	Cause           error
	CompensationErr error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("%s failed: %v; compensation failed: %v", e.Op, e.Cause, e.CompensationErr)
}

// Unwrap exposes the original cause so errors.Is still matches it.
func (e *CompensationError) Unwrap() error { return e.Cause }
