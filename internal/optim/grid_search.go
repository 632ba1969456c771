package optim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/san-kum/broomsim/internal/config"
	"github.com/san-kum/broomsim/internal/dynamo"
	"github.com/san-kum/broomsim/internal/metrics"
	"github.com/san-kum/broomsim/internal/sim"
)

// Evaluator runs one candidate config to completion.
type Evaluator func(ctx context.Context, cfg *config.Config) (*sim.Result, error)

// Headless returns an Evaluator that runs frames fixed-dt frames with the
// default metrics attached, recording every frame sample.
func Headless(dt float64, frames int, logger *log.Logger) Evaluator {
	return func(ctx context.Context, cfg *config.Config) (*sim.Result, error) {
		s, err := sim.New(cfg, sim.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		for _, m := range metrics.Default() {
			s.AddMetric(m)
		}
		return s.Run(ctx, sim.FixedClock{Dt: dt}, sim.RunOptions{Frames: frames, Record: true})
	}
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("%w: %d parameters but %d ranges", dynamo.ErrConfiguration, len(params), len(ranges))
	}
	for i, name := range params {
		if _, ok := Params[name]; !ok {
			return nil, fmt.Errorf("%w: unknown parameter %q", dynamo.ErrConfiguration, name)
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("%w: empty range for %q", dynamo.ErrConfiguration, name)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Candidate is one evaluated point of the grid.
type Candidate struct {
	Params map[string]float64
	Value  float64
	Err    error
}

// Search evaluates every grid point and returns the one with the lowest
// value of metricName. Candidates that fail to build or run are skipped;
// Search only fails when none succeeded.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, eval Evaluator, metricName string) (Candidate, []Candidate, error) {
	var all []Candidate
	g.searchRecursive(ctx, 0, map[string]float64{}, func(params map[string]float64) {
		all = append(all, g.evaluate(ctx, base, eval, metricName, params))
	})

	best := Candidate{Value: math.Inf(1)}
	found := false
	var errs []error
	for _, c := range all {
		if c.Err != nil {
			errs = append(errs, c.Err)
			continue
		}
		if !found || c.Value < best.Value {
			best, found = c, true
		}
	}
	if !found {
		return Candidate{}, all, fmt.Errorf("no candidate succeeded: %w", errors.Join(errs...))
	}
	return best, all, nil
}

func (g *GridSearch) evaluate(ctx context.Context, base *config.Config, eval Evaluator, metricName string, params map[string]float64) Candidate {
	c := Candidate{Params: params}
	cfg, err := Apply(base, params)
	if err != nil {
		c.Err = err
		return c
	}
	result, err := eval(ctx, cfg)
	if err != nil {
		c.Err = err
		return c
	}
	val, ok := result.Metrics[metricName]
	if !ok {
		c.Err = fmt.Errorf("metric %q not reported", metricName)
		return c
	}
	c.Value = val
	return c
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, visit func(map[string]float64)) {
	if ctx.Err() != nil {
		return
	}
	if depth == len(g.paramNames) {
		visit(current)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		g.searchRecursive(ctx, depth+1, newParams, visit)
	}
}
