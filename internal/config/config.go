package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/dctl/internal/control"
	"github.com/san-kum/dctl/internal/dynamo"
)

const (
	DefaultTs    = 0.01
	DefaultKc    = 0.8
	DefaultTi    = 2.0
	DefaultUMin  = -10.0
	DefaultUMax  = 10.0
	DefaultSteps = 10000
)

var ErrInvalidScenario = errors.New("config: invalid scenario")

// Scenario describes one closed-loop (or open-loop plant) run.
type Scenario struct {
	Name       string           `yaml:"name"`
	Controller ControllerConfig `yaml:"controller"`
	Override   *OverrideConfig  `yaml:"override,omitempty"`
	Plant      PlantConfig      `yaml:"plant"`
	Loop       LoopConfig       `yaml:"loop"`
	Setpoint   []Segment        `yaml:"setpoint"`
	Schedule   []Window         `yaml:"schedule,omitempty"`
	Inputs     [][]float64      `yaml:"inputs,omitempty"`
}

// ControllerConfig holds the PI parameters. A zero or missing ti selects
// proportional-only action.
type ControllerConfig struct {
	Kc     float64            `yaml:"kc"`
	Ti     float64            `yaml:"ti,omitempty"`
	Ts     float64            `yaml:"ts"`
	UMin   float64            `yaml:"umin"`
	UMax   float64            `yaml:"umax"`
	Mode   control.Mode       `yaml:"mode"`
	Freeze control.FreezeMode `yaml:"freeze"`
}

// OverrideConfig is the proportional controller that drives the plant while
// the main controller tracks it. It shares Ts and the output bounds.
type OverrideConfig struct {
	Kc float64 `yaml:"kc"`
}

type PlantConfig struct {
	A  Matrix    `yaml:"a"`
	B  Matrix    `yaml:"b"`
	C  Matrix    `yaml:"c"`
	D  Matrix    `yaml:"d,omitempty"`
	X0 []float64 `yaml:"x0"`
}

type LoopConfig struct {
	Steps         int  `yaml:"steps"`
	InputIndex    int  `yaml:"input_index"`
	OutputIndex   int  `yaml:"output_index"`
	ValidateState bool `yaml:"validate_state"`
}

// Segment holds Value for every t <= Until. The last segment extends forever.
type Segment struct {
	Until float64 `yaml:"until"`
	Value float64 `yaml:"value"`
}

// Window applies a phase for From <= t <= To.
type Window struct {
	From   float64            `yaml:"from"`
	To     float64            `yaml:"to"`
	Mode   control.Mode       `yaml:"mode"`
	Freeze control.FreezeMode `yaml:"freeze"`

	// Track is the tracking signal used when no override controller exists.
	Track float64 `yaml:"track,omitempty"`
}

type Matrix [][]float64

// Dense converts the rows into a gonum matrix. Ragged rows are rejected.
func (m Matrix) Dense() (*mat.Dense, error) {
	if len(m) == 0 || len(m[0]) == 0 {
		return nil, nil
	}
	rows, cols := len(m), len(m[0])
	data := make([]float64, 0, rows*cols)
	for i, row := range m {
		if len(row) != cols {
			return nil, &dynamo.DimensionError{
				Operand: fmt.Sprintf("row %d", i),
				Rows:    1,
				Cols:    len(row),
				Want:    fmt.Sprintf("%d columns", cols),
			}
		}
		data = append(data, row...)
	}
	return mat.NewDense(rows, cols, data), nil
}

func DefaultScenario() *Scenario {
	return &Scenario{
		Name: "default",
		Controller: ControllerConfig{
			Kc:   DefaultKc,
			Ti:   DefaultTi,
			Ts:   DefaultTs,
			UMin: DefaultUMin,
			UMax: DefaultUMax,
		},
		Plant: PlantConfig{
			A:  Matrix{{0.99}},
			B:  Matrix{{0.01}},
			C:  Matrix{{1}},
			X0: []float64{0},
		},
		Loop:     LoopConfig{Steps: DefaultSteps},
		Setpoint: []Segment{{Until: math.Inf(1), Value: 1}},
	}
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := &Scenario{
		Controller: DefaultScenario().Controller,
		Loop:       LoopConfig{Steps: DefaultSteps},
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, nil
}

func Save(path string, s *Scenario) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// TiValue maps the file representation onto control.NoIntegral.
func (c ControllerConfig) TiValue() float64 {
	if c.Ti == 0 {
		return control.NoIntegral
	}
	return c.Ti
}

// NewController builds the main controller in its initial mode.
func (s *Scenario) NewController() (*control.PID, error) {
	c := s.Controller
	pid, err := control.NewPID(c.Kc, c.TiValue(), c.Ts, c.UMin, c.UMax)
	if err != nil {
		return nil, err
	}
	pid.SetControllerState(c.Mode)
	pid.SetControlSignalState(c.Freeze)
	return pid, nil
}

// NewOverride builds the override controller, or returns nil when the
// scenario has none.
func (s *Scenario) NewOverride() (*control.PID, error) {
	if s.Override == nil {
		return nil, nil
	}
	c := s.Controller
	return control.NewP(s.Override.Kc, c.Ts, c.UMin, c.UMax)
}

// Matrices returns A, B, C, D. A missing D is filled with zeros.
func (p PlantConfig) Matrices() (a, b, c, d *mat.Dense, err error) {
	if a, err = p.A.Dense(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("plant a: %w", err)
	}
	if b, err = p.B.Dense(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("plant b: %w", err)
	}
	if c, err = p.C.Dense(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("plant c: %w", err)
	}
	if d, err = p.D.Dense(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("plant d: %w", err)
	}
	if d == nil && b != nil && c != nil {
		rows, _ := c.Dims()
		_, cols := b.Dims()
		d = mat.NewDense(rows, cols, nil)
	}
	return a, b, c, d, nil
}

// Duration is the simulated time covered by Loop.Steps cycles.
func (s *Scenario) Duration() float64 {
	return float64(s.Loop.Steps) * s.Controller.Ts
}

// Validate checks the harness-level settings. Controller and plant
// parameters are validated by their constructors.
func (s *Scenario) Validate() error {
	if s.Loop.Steps <= 0 {
		return fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidScenario, s.Loop.Steps)
	}
	if s.Loop.InputIndex < 0 || s.Loop.OutputIndex < 0 {
		return fmt.Errorf("%w: negative loop index", ErrInvalidScenario)
	}
	if len(s.Setpoint) == 0 {
		return fmt.Errorf("%w: setpoint profile is empty", ErrInvalidScenario)
	}
	for i := 1; i < len(s.Setpoint); i++ {
		if s.Setpoint[i].Until < s.Setpoint[i-1].Until {
			return fmt.Errorf("%w: setpoint segment %d ends before segment %d", ErrInvalidScenario, i, i-1)
		}
	}
	for i, w := range s.Schedule {
		if w.To < w.From {
			return fmt.Errorf("%w: schedule window %d ends before it starts", ErrInvalidScenario, i)
		}
	}
	return nil
}

// ValidateInputs checks the open-loop input sequence against the plant width.
func (s *Scenario) ValidateInputs(m int) error {
	if len(s.Inputs) == 0 {
		return fmt.Errorf("%w: no plant inputs", ErrInvalidScenario)
	}
	for k, u := range s.Inputs {
		if len(u) != m {
			return fmt.Errorf("input %d: %w", k, &dynamo.DimensionError{Operand: "u", Rows: len(u), Cols: 1, Want: fmt.Sprintf("%d elements", m)})
		}
	}
	return nil
}
