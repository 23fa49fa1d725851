package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for control and simulation operations.
var (
	// ErrInvalidState indicates NaN or Inf in a signal the harness watches.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrDimensionMismatch indicates inconsistent matrix or vector shapes.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")
)

// DimensionError reports which operand had the wrong shape.
type DimensionError struct {
	Operand string
	Rows    int
	Cols    int
	Want    string
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dynamo: dimension mismatch: %s is %dx%d, want %s", e.Operand, e.Rows, e.Cols, e.Want)
}

func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// SimulationError wraps an error with loop context.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
