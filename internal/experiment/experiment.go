// Package experiment turns scenario files into runnable loops.
package experiment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/san-kum/dctl/internal/config"
	"github.com/san-kum/dctl/internal/control"
	"github.com/san-kum/dctl/internal/dynamo"
	"github.com/san-kum/dctl/internal/logging"
	"github.com/san-kum/dctl/internal/metrics"
	"github.com/san-kum/dctl/internal/sim"
	"github.com/san-kum/dctl/internal/statespace"
)

type Experiment struct {
	scenario   *config.Scenario
	controller *control.PID
	plant      *statespace.Discrete
	loop       *sim.Loop
	log        *zap.Logger
}

func New(s *config.Scenario, log *zap.Logger) *Experiment {
	return &Experiment{
		scenario: s,
		log:      logging.OrNop(log).With(zap.String("scenario", s.Name)),
	}
}

// Setup validates the scenario and builds the controllers, the plant and
// the loop with the default metric set.
func (e *Experiment) Setup() error {
	s := e.scenario
	if err := s.Validate(); err != nil {
		return err
	}

	ctrl, err := s.NewController()
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	override, err := s.NewOverride()
	if err != nil {
		return fmt.Errorf("override: %w", err)
	}
	plant, err := NewPlant(s)
	if err != nil {
		return err
	}

	opts := []sim.Option{
		sim.WithProfile(Profile(s)),
		sim.WithSchedule(Schedule(s)),
		sim.WithLogger(e.log),
	}
	if override != nil {
		opts = append(opts, sim.WithOverride(override))
	}

	loop := sim.New(ctrl, plant, sim.Config{
		Ts:            s.Controller.Ts,
		Steps:         s.Loop.Steps,
		InputIndex:    s.Loop.InputIndex,
		OutputIndex:   s.Loop.OutputIndex,
		ValidateState: s.Loop.ValidateState,
	}, opts...)
	for _, m := range metrics.Default(s.Controller.Ts) {
		loop.AddMetric(m)
	}

	e.controller = ctrl
	e.plant = plant
	e.loop = loop
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.loop == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.loop.Run(ctx)
}

// GetLoop returns the underlying loop for adding observers.
func (e *Experiment) GetLoop() *sim.Loop {
	return e.loop
}

// Params returns the main controller parameters for run metadata.
func (e *Experiment) Params() map[string]float64 {
	if e.controller == nil {
		return nil
	}
	return e.controller.GetParams()
}

func (e *Experiment) Scenario() *config.Scenario {
	return e.scenario
}

// RunAll sets up every scenario and runs them concurrently.
func RunAll(ctx context.Context, scenarios []*config.Scenario, log *zap.Logger) ([]*Experiment, []*sim.Result, error) {
	exps := make([]*Experiment, len(scenarios))
	loops := make([]*sim.Loop, len(scenarios))
	for i, s := range scenarios {
		exps[i] = New(s, log)
		if err := exps[i].Setup(); err != nil {
			return nil, nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		loops[i] = exps[i].GetLoop()
	}

	results, err := sim.RunAll(ctx, loops)
	if err != nil {
		return nil, nil, err
	}
	return exps, results, nil
}

func NewPlant(s *config.Scenario) (*statespace.Discrete, error) {
	a, b, c, d, err := s.Plant.Matrices()
	if err != nil {
		return nil, err
	}
	plant, err := statespace.New(a, b, c, d, s.Plant.X0)
	if err != nil {
		return nil, fmt.Errorf("plant: %w", err)
	}
	return plant, nil
}

func Profile(s *config.Scenario) sim.Profile {
	p := make(sim.Profile, len(s.Setpoint))
	for i, seg := range s.Setpoint {
		p[i] = sim.Segment{Until: seg.Until, Value: seg.Value}
	}
	return p
}

// Schedule maps the scenario windows onto a supervisor schedule whose
// default phase is the controller's configured mode.
func Schedule(s *config.Scenario) sim.Schedule {
	sched := sim.Schedule{
		Windows: make([]sim.Window, len(s.Schedule)),
		Default: sim.Phase{Mode: s.Controller.Mode, Freeze: s.Controller.Freeze},
	}
	for i, w := range s.Schedule {
		sched.Windows[i] = sim.Window{
			From:  w.From,
			To:    w.To,
			Phase: sim.Phase{Mode: w.Mode, Freeze: w.Freeze, Track: w.Track},
		}
	}
	return sched
}

// PlantStep is one open-loop step: the input applied, the output computed
// from the state before the update, and the state after it.
type PlantStep struct {
	Step   int
	Input  dynamo.Vector
	Output dynamo.Vector
	State  dynamo.Vector
}

// RunPlant steps the scenario's plant open loop over its input sequence.
func RunPlant(s *config.Scenario) ([]PlantStep, error) {
	plant, err := NewPlant(s)
	if err != nil {
		return nil, err
	}
	_, m, _ := plant.Dims()
	if err := s.ValidateInputs(m); err != nil {
		return nil, err
	}

	steps := make([]PlantStep, 0, len(s.Inputs))
	for k, u := range s.Inputs {
		y, err := plant.Step(u)
		if err != nil {
			return steps, &dynamo.SimulationError{Step: k, Time: float64(k) * s.Controller.Ts, Wrapped: err}
		}
		steps = append(steps, PlantStep{
			Step:   k,
			Input:  dynamo.Vector(u).Clone(),
			Output: y,
			State:  plant.State(),
		})
	}
	return steps, nil
}
