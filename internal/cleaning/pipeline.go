package cleaning

import (
	"fmt"

	"github.com/JonMunkholm/DataClean/internal/dataset"
)

// Options configures a Pipeline.
type Options struct {
	// IdentityColumns define row identity for duplicate removal
	// (default: email, signup_date).
	IdentityColumns []string

	// Placeholder replaces missing string cells (default: "Unknown").
	Placeholder string
}

// Pipeline applies its operations in order.
type Pipeline struct {
	ops []Operation
}

// NewPipeline returns the standard pipeline:
// fill missing values, remove duplicates, normalize strings.
func NewPipeline(opts Options) *Pipeline {
	identity := opts.IdentityColumns
	if len(identity) == 0 {
		identity = DefaultIdentityColumns()
	}
	return &Pipeline{ops: []Operation{
		FillMissing{Placeholder: opts.Placeholder},
		RemoveDuplicates{IdentityColumns: append([]string(nil), identity...)},
		NormalizeStrings{},
	}}
}

// Steps returns the operation names in execution order.
func (p *Pipeline) Steps() []StepName {
	names := make([]StepName, len(p.ops))
	for i, op := range p.ops {
		names[i] = op.Name()
	}
	return names
}

// Run cleans ds and returns the result with its step log. The instruction is
// recorded in the log only. On failure nothing but the error is returned and
// ds is left untouched.
func (p *Pipeline) Run(ds *dataset.Dataset, instruction string) (*dataset.Dataset, Run, error) {
	if ds == nil {
		return nil, Run{}, fmt.Errorf("%w: no dataset", ErrInvalidInput)
	}

	run := Run{
		Instruction:  instruction,
		OriginalRows: ds.Len(),
		Steps:        make([]StepResult, 0, len(p.ops)),
	}

	current := ds
	for i, op := range p.ops {
		next, result, err := op.Apply(current)
		if err != nil {
			return nil, Run{}, &StepError{Index: i + 1, Step: op.Name(), Err: err}
		}
		run.Steps = append(run.Steps, result)
		current = next
	}

	run.CleanedRows = current.Len()
	return current, run, nil
}

// Clean runs the standard pipeline over ds.
func Clean(ds *dataset.Dataset, instruction string, opts Options) (*dataset.Dataset, Run, error) {
	return NewPipeline(opts).Run(ds, instruction)
}
