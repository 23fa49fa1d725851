// Package optim tunes controller parameters by exhaustive grid search.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/dctl/internal/config"
	"github.com/san-kum/dctl/internal/experiment"
)

var ErrNoCandidate = errors.New("optim: no grid point produced a result")

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, workers: runtime.GOMAXPROCS(0)}
}

func (g *GridSearch) SetWorkers(n int) {
	if n > 0 {
		g.workers = n
	}
}

// Points enumerates the grid with the first parameter varying slowest.
func (g *GridSearch) Points() []map[string]float64 {
	var points []map[string]float64
	g.enumerate(0, make(map[string]float64), &points)
	return points
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		p := make(map[string]float64, len(current))
		for k, v := range current {
			p[k] = v
		}
		*out = append(*out, p)
		return
	}

	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[name] = val
		g.enumerate(depth+1, current, out)
	}
	delete(current, name)
}

// Search evaluates every grid point and returns the one minimising the named
// metric. Points whose experiment cannot be built or fails are skipped; ties
// go to the earlier point.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (map[string]float64, float64, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, fmt.Errorf("optim: %d parameters for %d ranges", len(g.paramNames), len(g.ranges))
	}

	points := g.Points()
	values := make([]float64, len(points))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, p := range points {
		eg.Go(func() error {
			values[i] = math.NaN()
			exp, err := buildExperiment(p)
			if err != nil {
				return nil
			}
			result, err := exp.Run(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			}
			if v, ok := result.Metrics[metricName]; ok {
				values[i] = v
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}

	best := math.Inf(1)
	var bestParams map[string]float64
	for i, v := range values {
		if !math.IsNaN(v) && v < best {
			best = v
			bestParams = points[i]
		}
	}
	if bestParams == nil {
		return nil, 0, ErrNoCandidate
	}
	return bestParams, best, nil
}

// ScenarioBuilder returns a builder that applies "kc" and "ti" grid values
// to copies of base.
func ScenarioBuilder(base *config.Scenario) func(map[string]float64) (*experiment.Experiment, error) {
	return func(params map[string]float64) (*experiment.Experiment, error) {
		s := *base
		if v, ok := params["kc"]; ok {
			s.Controller.Kc = v
		}
		if v, ok := params["ti"]; ok {
			s.Controller.Ti = v
		}
		exp := experiment.New(&s, nil)
		if err := exp.Setup(); err != nil {
			return nil, err
		}
		return exp, nil
	}
}
