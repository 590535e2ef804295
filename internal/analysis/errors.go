package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDataset is returned when a dataset has zero rows or zero columns.
	ErrEmptyDataset = errors.New("dataset has no rows or columns")

	// ErrNotReady is returned when a result is requested before the job completed.
	ErrNotReady = errors.New("analysis result not ready")

	// ErrStageTimeout is returned when a pipeline stage exceeded its time bound.
	ErrStageTimeout = errors.New("analysis stage timed out")

	// ErrInternalConsistency marks an invariant violation. Always fatal for
	// the job, never silently recovered.
	ErrInternalConsistency = errors.New("internal consistency violation")
)

// StageError records which pipeline stage failed and why. It is the error
// detail stored on a failed job.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
