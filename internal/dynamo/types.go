package dynamo

import "math"

type Vector []float64

func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

func (v Vector) IsValid() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Sample is one closed-loop cycle.
type Sample struct {
	Step        int
	Time        float64
	Setpoint    float64
	Measurement float64
	Control     float64
	Integral    float64
	Mode        string
	Saturated   bool
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s Sample)
}
