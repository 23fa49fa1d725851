package sim

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/san-kum/dctl/internal/control"
	"github.com/san-kum/dctl/internal/dynamo"
	"github.com/san-kum/dctl/internal/logging"
)

// Loop closes one SISO loop between a controller and a plant. Each cycle
// the measurement is C*x[k] + D*u[k-1], the supervisor phase is applied, the
// controller is evaluated and the plant is stepped with the result.
type Loop struct {
	ctrl     Controller
	override Controller
	plant    Plant
	cfg      Config

	profile  Profile
	schedule Schedule

	metrics   []dynamo.Metric
	observers []dynamo.Observer
	log       *zap.Logger
}

type Option func(*Loop)

// WithOverride installs the controller that drives the plant during Tracking
// phases. It always runs in Auto.
func WithOverride(c Controller) Option {
	return func(l *Loop) { l.override = c }
}

func WithProfile(p Profile) Option {
	return func(l *Loop) { l.profile = p }
}

func WithSchedule(s Schedule) Option {
	return func(l *Loop) { l.schedule = s }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Loop) { l.log = logging.OrNop(log) }
}

func New(ctrl Controller, plant Plant, cfg Config, opts ...Option) *Loop {
	l := &Loop{
		ctrl:      ctrl,
		plant:     plant,
		cfg:       cfg,
		metrics:   make([]dynamo.Metric, 0),
		observers: make([]dynamo.Observer, 0),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) AddMetric(m dynamo.Metric)     { l.metrics = append(l.metrics, m) }
func (l *Loop) AddObserver(o dynamo.Observer) { l.observers = append(l.observers, o) }

// Run executes cycles k = 1..Steps at t = k*Ts. On cancellation or a plant
// error the partial result is returned with the error.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	if err := l.validateConfig(); err != nil {
		return nil, err
	}
	_, m, _ := l.plant.Dims()

	result := newResult(l.cfg.Steps)
	for _, metric := range l.metrics {
		metric.Reset()
	}

	input := make(dynamo.Vector, m)
	prev := Phase{Mode: -1}

	for k := 1; k <= l.cfg.Steps; k++ {
		select {
		case <-ctx.Done():
			l.collect(result)
			return result, ctx.Err()
		default:
		}

		t := float64(k) * l.cfg.Ts

		y, err := l.plant.Peek(input)
		if err != nil {
			l.collect(result)
			return result, &dynamo.SimulationError{Step: k, Time: t, Wrapped: err}
		}
		measurement := y[l.cfg.OutputIndex]
		setpoint := l.profile.At(t)

		phase := l.schedule.At(t)
		if phase != prev {
			l.log.Debug("phase change",
				zap.Float64("t", t),
				zap.Stringer("mode", phase.Mode),
				zap.Stringer("freeze", phase.Freeze))
			prev = phase
		}

		u := l.evaluate(phase, measurement, setpoint)

		sample := dynamo.Sample{
			Step:        k,
			Time:        t,
			Setpoint:    setpoint,
			Measurement: measurement,
			Control:     u,
			Integral:    l.ctrl.Integral(),
			Mode:        phase.Mode.String(),
			Saturated:   l.ctrl.Saturated(),
		}
		for _, metric := range l.metrics {
			metric.Observe(sample)
		}
		for _, obs := range l.observers {
			obs.OnStep(sample)
		}
		result.record(sample)

		input[l.cfg.InputIndex] = u
		out, err := l.plant.Step(input)
		if err != nil {
			l.collect(result)
			return result, &dynamo.SimulationError{Step: k, Time: t, Wrapped: err}
		}

		if l.cfg.ValidateState && (!out.IsValid() || math.IsNaN(u) || math.IsInf(u, 0)) {
			l.collect(result)
			return result, &dynamo.SimulationError{Step: k, Time: t, Wrapped: dynamo.ErrInvalidState}
		}
	}

	l.collect(result)
	l.log.Info("run complete",
		zap.Int("steps", result.StepsTaken),
		zap.Any("metrics", result.Metrics))
	return result, nil
}

func (l *Loop) evaluate(phase Phase, measurement, setpoint float64) float64 {
	if phase.Mode == control.Tracking && l.override != nil {
		l.override.SetControllerState(control.Auto)
		u := l.override.Evaluate(measurement, setpoint, 0)

		l.ctrl.SetControllerState(control.Tracking)
		l.ctrl.SetControlSignalState(phase.Freeze)
		l.ctrl.Evaluate(measurement, setpoint, u)
		return u
	}

	l.ctrl.SetControllerState(phase.Mode)
	l.ctrl.SetControlSignalState(phase.Freeze)
	return l.ctrl.Evaluate(measurement, setpoint, phase.Track)
}

func (l *Loop) collect(result *Result) {
	for _, metric := range l.metrics {
		result.Metrics[metric.Name()] = metric.Value()
	}
}

func (l *Loop) validateConfig() error {
	if l.cfg.Ts <= 0 {
		return fmt.Errorf("ts must be positive, got %f: %w", l.cfg.Ts, dynamo.ErrParameterBounds)
	}
	if l.cfg.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d: %w", l.cfg.Steps, dynamo.ErrParameterBounds)
	}
	_, m, p := l.plant.Dims()
	if l.cfg.InputIndex < 0 || l.cfg.InputIndex >= m {
		return fmt.Errorf("input index %d outside [0,%d): %w", l.cfg.InputIndex, m, dynamo.ErrDimensionMismatch)
	}
	if l.cfg.OutputIndex < 0 || l.cfg.OutputIndex >= p {
		return fmt.Errorf("output index %d outside [0,%d): %w", l.cfg.OutputIndex, p, dynamo.ErrDimensionMismatch)
	}
	return nil
}
