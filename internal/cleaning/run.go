// Package cleaning implements the fixed three-step cleaning pipeline.
//
// The pipeline fills missing string cells, removes duplicate rows by identity
// columns, and normalizes string columns, in that order. It is synchronous,
// performs no I/O, and never mutates the dataset it is given. The instruction
// passed to a run is recorded but does not influence which steps execute.
package cleaning

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/DataClean/internal/dataset"
)

// ErrInvalidInput is returned for malformed data or a missing required column.
var ErrInvalidInput = dataset.ErrInvalidInput

// StepName identifies an operation. Values are persisted and shown in reports.
type StepName string

const (
	StepFillMissing      StepName = "missing_values_filled_with_na"
	StepRemoveDuplicates StepName = "duplicates_removed"
	StepNormalizeStrings StepName = "strings_normalized"
)

// StepResult records what one operation did.
type StepResult struct {
	Step    StepName       `json:"step"`
	Columns []string       `json:"columns"`
	Filled  map[string]int `json:"filled_count,omitempty"`
	Removed int            `json:"removed_count,omitempty"`
	Message string         `json:"message"`
}

// Run is the ordered log of one pipeline execution.
type Run struct {
	Instruction  string       `json:"instruction"`
	OriginalRows int          `json:"original_rows"`
	CleanedRows  int          `json:"cleaned_rows"`
	Steps        []StepResult `json:"steps"`
}

// StepError wraps the error of the operation that aborted a run.
type StepError struct {
	Index int // 1-based position in the pipeline
	Step  StepName
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("cleaning step %d (%s): %v", e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step that aborted a run, if err came from one.
func FailedStep(err error) (StepName, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return "", false
}
