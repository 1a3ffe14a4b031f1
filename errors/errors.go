// Package errors provides error handling for vgate.
//
// It re-exports github.com/cockroachdb/errors (stack traces, wrapping,
// hints, marks) and defines the workflow error taxonomy:
//
//   - ErrAdapter: the external verifier could not be started, timed out,
//     or produced output that cannot be interpreted.
//   - ErrStageUnavailable: a stage's backing capability (the LLM) could not
//     be reached.
//   - ErrWorkflowFailed: any other stage-level failure.
//
// Classify with errors.Is; attach a category to an existing error with Mark
// so that the original message and stack are kept:
//
//	return errors.Mark(errors.Wrap(err, "ask csv_analyzer"), errors.ErrStageUnavailable)
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Workflow error taxonomy. Use with errors.Is().
var (
	// ErrAdapter marks failures of the external verifier process itself
	// (cannot start, timed out, exited without a terminal marker).
	ErrAdapter = New("verifier adapter error")

	// ErrStageUnavailable marks stages whose backing capability could not be reached
	ErrStageUnavailable = New("stage unavailable")

	// ErrWorkflowFailed marks unclassified stage failures
	ErrWorkflowFailed = New("workflow failed")

	// ErrInvalidDataset indicates the input could not be read as a dataset
	ErrInvalidDataset = New("invalid dataset")

	// ErrTimeout indicates an operation exceeded its deadline
	ErrTimeout = New("operation timed out")

	// ErrCancelled indicates the run was cancelled between stages
	ErrCancelled = New("workflow cancelled")
)

// IsAdapterError checks if an error is or wraps ErrAdapter
func IsAdapterError(err error) bool {
	return err != nil && Is(err, ErrAdapter)
}

// IsStageUnavailable checks if an error is or wraps ErrStageUnavailable
func IsStageUnavailable(err error) bool {
	return err != nil && Is(err, ErrStageUnavailable)
}

// IsWorkflowFailed checks if an error is or wraps ErrWorkflowFailed
func IsWorkflowFailed(err error) bool {
	return err != nil && Is(err, ErrWorkflowFailed)
}

// StageUnavailable marks err as a StageUnavailable failure, keeping its message.
func StageUnavailable(err error, stage string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrapf(err, "stage %s unavailable", stage), ErrStageUnavailable)
}

// Classify returns the taxonomy category name for err:
// "adapter", "stage_unavailable", "cancelled" or "workflow_failed".
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrAdapter):
		return "adapter"
	case Is(err, ErrStageUnavailable):
		return "stage_unavailable"
	case Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "workflow_failed"
	}
}
