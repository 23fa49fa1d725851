package metrics

import (
	"math"

	"github.com/san-kum/dctl/internal/dynamo"
)

// IAE integrates the absolute tracking error with a rectangle rule.
type IAE struct {
	name string
	dt   float64
	sum  float64
}

func NewIAE(dt float64) *IAE {
	return &IAE{name: "iae", dt: dt}
}

func (e *IAE) Name() string { return e.name }

func (e *IAE) Observe(s dynamo.Sample) {
	e.sum += math.Abs(s.Setpoint-s.Measurement) * e.dt
}

func (e *IAE) Value() float64 { return e.sum }

func (e *IAE) Reset() { e.sum = 0 }

// MaxError is the peak absolute tracking error.
type MaxError struct {
	name string
	max  float64
}

func NewMaxError() *MaxError {
	return &MaxError{name: "max_error"}
}

func (e *MaxError) Name() string { return e.name }

func (e *MaxError) Observe(s dynamo.Sample) {
	e.max = math.Max(e.max, math.Abs(s.Setpoint-s.Measurement))
}

func (e *MaxError) Value() float64 { return e.max }

func (e *MaxError) Reset() { e.max = 0 }
