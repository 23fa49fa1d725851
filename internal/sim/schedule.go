package sim

import "github.com/san-kum/dctl/internal/control"

// Segment holds Value for t <= Until.
type Segment struct {
	Until float64
	Value float64
}

// Profile is a piecewise-constant setpoint. Segments are ordered by Until;
// the last value holds past the final boundary.
type Profile []Segment

func (p Profile) At(t float64) float64 {
	for _, seg := range p {
		if t <= seg.Until {
			return seg.Value
		}
	}
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1].Value
}

// Phase is what the supervisor imposes on the main controller for a cycle.
type Phase struct {
	Mode   control.Mode
	Freeze control.FreezeMode
	// Track is the tracking signal when no override controller is present.
	Track float64
}

// Window applies Phase for From <= t <= To.
type Window struct {
	From, To float64
	Phase
}

// Schedule picks the first window containing t, or Default.
type Schedule struct {
	Windows []Window
	Default Phase
}

func (s Schedule) At(t float64) Phase {
	for _, w := range s.Windows {
		if t >= w.From && t <= w.To {
			return w.Phase
		}
	}
	return s.Default
}
