// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"errors"
	"fmt"

	"github.com/pdiddy/research-assistant/pkg/types"
)

var (
	// ErrInterruptPending rejects a new query on a thread that is waiting
	// for a ranking criterion.
	ErrInterruptPending = errors.New("thread is waiting for a ranking criterion")

	// ErrNoPendingInterrupt rejects a resume on a thread that is not
	// waiting for a criterion.
	ErrNoPendingInterrupt = errors.New("thread has no pending interrupt")

	// ErrThreadNotFound is returned for operations on unknown threads.
	ErrThreadNotFound = errors.New("thread not found")
)

// ValidationError reports a malformed request field. Field is the JSON
// name of the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StepError wraps a language model failure on the critical path of a turn.
type StepError struct {
	Step     types.Step
	ThreadID string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("thread %s: %s step: %v", e.ThreadID, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
