package sim

import (
	"github.com/san-kum/dctl/internal/control"
	"github.com/san-kum/dctl/internal/dynamo"
)

// Controller is the per-cycle surface of control.PID used by the loop.
type Controller interface {
	Evaluate(measurement, setpoint, tracking float64) float64
	SetControllerState(m control.Mode)
	SetControlSignalState(f control.FreezeMode)
	Integral() float64
	Saturated() bool
}

// Plant is the surface of statespace.Discrete used by the loop.
type Plant interface {
	Step(u dynamo.Vector) (dynamo.Vector, error)
	Peek(u dynamo.Vector) (dynamo.Vector, error)
	Dims() (n, m, p int)
}

type Config struct {
	Ts            float64
	Steps         int
	InputIndex    int
	OutputIndex   int
	ValidateState bool
}

// Result holds one value per executed cycle in every column.
type Result struct {
	Times        []float64
	Setpoints    []float64
	Measurements []float64
	Controls     []float64
	Integrals    []float64
	Modes        []string
	Metrics      map[string]float64
	StepsTaken   int
}

func newResult(capacity int) *Result {
	return &Result{
		Times:        make([]float64, 0, capacity),
		Setpoints:    make([]float64, 0, capacity),
		Measurements: make([]float64, 0, capacity),
		Controls:     make([]float64, 0, capacity),
		Integrals:    make([]float64, 0, capacity),
		Modes:        make([]string, 0, capacity),
		Metrics:      make(map[string]float64),
	}
}

func (r *Result) record(s dynamo.Sample) {
	r.Times = append(r.Times, s.Time)
	r.Setpoints = append(r.Setpoints, s.Setpoint)
	r.Measurements = append(r.Measurements, s.Measurement)
	r.Controls = append(r.Controls, s.Control)
	r.Integrals = append(r.Integrals, s.Integral)
	r.Modes = append(r.Modes, s.Mode)
	r.StepsTaken++
}
