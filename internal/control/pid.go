package control

import (
	"fmt"
	"math"

	"github.com/san-kum/dctl/internal/dynamo"
)

// NoIntegral disables the integral term when passed as Ti.
var NoIntegral = math.Inf(1)

// Params are the structural parameters fixed at construction.
type Params struct {
	Kc   float64
	Ti   float64
	Ts   float64
	UMin float64
	UMax float64
}

// HasIntegral reports whether Ti selects proportional-integral action.
func (p Params) HasIntegral() bool {
	return !math.IsInf(p.Ti, 1)
}

type PID struct {
	params Params

	mode   Mode
	freeze FreezeMode

	integral float64
	output   float64

	// set by a Tracking evaluation, consumed by the next Auto one
	transfer bool
}

// NewPID builds a PI controller. A Ti of NoIntegral yields pure proportional
// action.
func NewPID(kc, ti, ts, umin, umax float64) (*PID, error) {
	p := Params{Kc: kc, Ti: ti, Ts: ts, UMin: umin, UMax: umax}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &PID{params: p, mode: Auto, freeze: NoFreeze}, nil
}

// NewP builds a pure proportional controller.
func NewP(kc, ts, umin, umax float64) (*PID, error) {
	return NewPID(kc, NoIntegral, ts, umin, umax)
}

func (p Params) validate() error {
	for name, v := range map[string]float64{"kc": p.Kc, "ti": p.Ti, "ts": p.Ts, "umin": p.UMin, "umax": p.UMax} {
		if math.IsNaN(v) {
			return fmt.Errorf("%s is NaN: %w", name, dynamo.ErrParameterBounds)
		}
	}
	if p.Ts <= 0 || math.IsInf(p.Ts, 0) {
		return fmt.Errorf("ts must be positive and finite, got %g: %w", p.Ts, dynamo.ErrParameterBounds)
	}
	if p.Ti <= 0 {
		return fmt.Errorf("ti must be positive, got %g: %w", p.Ti, dynamo.ErrParameterBounds)
	}
	if p.UMin > p.UMax {
		return fmt.Errorf("umin %g exceeds umax %g: %w", p.UMin, p.UMax, dynamo.ErrParameterBounds)
	}
	return nil
}

// SetControllerState switches the operating mode for the next evaluation.
func (c *PID) SetControllerState(m Mode) {
	c.mode = m
}

// SetControlSignalState selects the anti-windup policy. The flag is latched
// in every mode and only acts in Auto.
func (c *PID) SetControlSignalState(f FreezeMode) {
	c.freeze = f
}

// SetManualOutput moves the value held while in Manual.
func (c *PID) SetManualOutput(u float64) {
	c.output = u
}

// Evaluate runs one sampling period and returns the commanded output.
func (c *PID) Evaluate(measurement, setpoint, tracking float64) float64 {
	e := setpoint - measurement

	switch c.mode {
	case Tracking:
		c.track(e, tracking)
	case Manual:
		c.transfer = false
	default:
		c.auto(e)
	}
	return c.output
}

// track follows the external signal unclamped and back-computes the integral
// so that Kc*(e+integral) reproduces it.
func (c *PID) track(e, tracking float64) {
	c.output = tracking
	if c.params.Kc != 0 {
		c.integral = tracking/c.params.Kc - e
	}
	c.transfer = true
}

func (c *PID) auto(e float64) {
	kc := c.params.Kc

	if c.params.HasIntegral() && !c.transfer {
		delta := e * c.params.Ts / c.params.Ti
		// Freezing only starts once the output already sits on the bound.
		held := kc * (e + c.integral)
		switch {
		case c.freeze == FreezeUp && held >= c.params.UMax && kc*delta > 0:
			// frozen
		case c.freeze == FreezeDown && held <= c.params.UMin && kc*delta < 0:
			// frozen
		default:
			c.integral += delta
		}
	}
	c.transfer = false

	raw := kc * (e + c.integral)
	u := clamp(raw, c.params.UMin, c.params.UMax)

	// A freeze flag only guards its own bound; the other side keeps
	// back-calculation.
	if u != raw && c.params.HasIntegral() && kc != 0 && !c.frozenAt(raw) {
		c.integral = u/kc - e
	}
	c.output = u
}

func (c *PID) frozenAt(raw float64) bool {
	switch c.freeze {
	case FreezeUp:
		return raw > c.params.UMax
	case FreezeDown:
		return raw < c.params.UMin
	}
	return false
}

// Reset clears the integral and the held output. Mode and freeze flags are
// left to the supervisor.
func (c *PID) Reset() {
	c.integral = 0
	c.output = 0
	c.transfer = false
}

func (c *PID) Mode() Mode             { return c.mode }
func (c *PID) FreezeMode() FreezeMode { return c.freeze }
func (c *PID) Integral() float64      { return c.integral }
func (c *PID) Output() float64        { return c.output }
func (c *PID) Params() Params         { return c.params }

// Saturated reports whether the last output sits on a bound.
func (c *PID) Saturated() bool {
	return c.output >= c.params.UMax || c.output <= c.params.UMin
}

// GetParams returns the structural parameters for run metadata.
func (c *PID) GetParams() map[string]float64 {
	params := map[string]float64{
		"Kc":   c.params.Kc,
		"Ts":   c.params.Ts,
		"UMin": c.params.UMin,
		"UMax": c.params.UMax,
	}
	if c.params.HasIntegral() {
		params["Ti"] = c.params.Ti
	}
	return params
}

func clamp(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}
