package contract

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline.
var (
	ErrDataUnavailable        = errors.New("data unavailable")
	ErrPredictorUnavailable   = errors.New("predictor unavailable")
	ErrDependencyCycle        = errors.New("dependency cycle")
	ErrBudgetExceeded         = errors.New("time budget exceeded")
	ErrCorruptExecutionRecord = errors.New("corrupt execution record")
	ErrInvalidChange          = errors.New("invalid code change")
	ErrVersionConflict        = errors.New("version conflict")
)

// ChangeError reports an absent or malformed CodeChange. It is always fatal.
type ChangeError struct {
	ChangeID string
	Reason   string
	Err      error
}

func (e *ChangeError) Error() string {
	msg := fmt.Sprintf("invalid change %q: %s", e.ChangeID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ChangeError) Unwrap() error { return e.Err }

// Is matches ErrInvalidChange.
func (e *ChangeError) Is(target error) bool { return target == ErrInvalidChange }

// RecordError reports one corrupt execution record by its position in the input.
type RecordError struct {
	Index  int
	TestID string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("execution record %d (test %q): %v", e.Index, e.TestID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RecordError) Unwrap() error { return e.Err }

// Is matches ErrCorruptExecutionRecord.
func (e *RecordError) Is(target error) bool { return target == ErrCorruptExecutionRecord }
