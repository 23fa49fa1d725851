package config

import (
	"math"
	"sort"

	"github.com/san-kum/dctl/internal/control"
)

// Presets build fresh scenarios so callers may override fields freely.
var Presets = map[string]func() *Scenario{
	"reference":  referenceScenario,
	"step":       stepScenario,
	"integrator": integratorScenario,
	"manual":     manualScenario,
}

// referenceScenario drives a first-order lag through the setpoint and
// supervisor schedule used to validate the controller: proportional
// override for the first 10 s, then PI with short freeze windows.
func referenceScenario() *Scenario {
	s := DefaultScenario()
	s.Name = "reference"
	s.Override = &OverrideConfig{Kc: DefaultKc}
	s.Setpoint = []Segment{
		{Until: 20, Value: -9},
		{Until: 40, Value: 9},
		{Until: 60, Value: 0},
		{Until: 80, Value: 9},
		{Until: math.Inf(1), Value: 0},
	}
	s.Schedule = []Window{
		{From: 0, To: 10, Mode: control.Tracking, Freeze: control.NoFreeze},
		{From: 62.5, To: 64.5, Mode: control.Auto, Freeze: control.FreezeDown},
		{From: 81, To: 82.5, Mode: control.Auto, Freeze: control.FreezeUp},
	}
	s.Loop.Steps = 9999
	return s
}

func stepScenario() *Scenario {
	s := DefaultScenario()
	s.Name = "step"
	s.Setpoint = []Segment{{Until: 1, Value: 0}, {Until: math.Inf(1), Value: 5}}
	s.Loop.Steps = 3000
	return s
}

// integratorScenario is the unit-gain integrator x[k+1] = x[k] + u[k]
// with a unit input sequence for open-loop stepping.
func integratorScenario() *Scenario {
	s := DefaultScenario()
	s.Name = "integrator"
	s.Plant = PlantConfig{
		A:  Matrix{{1}},
		B:  Matrix{{1}},
		C:  Matrix{{1}},
		D:  Matrix{{0}},
		X0: []float64{0},
	}
	s.Inputs = [][]float64{{1}, {1}, {1}}
	s.Loop.Steps = 3
	return s
}

func manualScenario() *Scenario {
	s := DefaultScenario()
	s.Name = "manual"
	s.Setpoint = []Segment{{Until: math.Inf(1), Value: 4}}
	s.Schedule = []Window{{From: 5, To: 10, Mode: control.Manual}}
	s.Loop.Steps = 1500
	return s
}

// GetPreset returns a new copy of the named preset, or nil.
func GetPreset(name string) *Scenario {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
