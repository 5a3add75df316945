// Package optim searches solver settings for the values that minimize a run
// metric.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/logger"
	"github.com/san-kum/clothsim/internal/scenario"
	"go.uber.org/zap"
)

var ErrNoCandidate = errors.New("optim: no candidate completed")

// GridSearch tries every combination of the given setting values.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("%d settings but %d ranges", len(params), len(ranges))
	}
	probe := config.DefaultConfig()
	for _, p := range params {
		if err := probe.Set(p, 0); err != nil {
			return nil, err
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Best is the winning combination of a search.
type Best struct {
	Params    map[string]float64
	Value     float64
	Evaluated int
	Skipped   int
}

// Search runs the base configuration's scenario once per combination and
// keeps the one with the lowest metric. Combinations that fail validation or
// report frame errors are skipped.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, registry *scenario.Registry, metricName string) (*Best, error) {
	if registry == nil {
		registry = scenario.NewRegistry()
	}
	best := &Best{Value: math.Inf(1)}
	if err := g.searchRecursive(ctx, 0, map[string]float64{}, base, registry, metricName, best); err != nil {
		return nil, err
	}
	if best.Params == nil {
		return best, ErrNoCandidate
	}
	return best, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, base *config.Config, registry *scenario.Registry, metricName string, best *Best) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		val, ok, err := g.evaluate(ctx, current, base, registry, metricName)
		if err != nil {
			return err
		}
		if !ok {
			best.Skipped++
			return nil
		}
		best.Evaluated++
		if val < best.Value {
			best.Value = val
			best.Params = make(map[string]float64, len(current))
			for k, v := range current {
				best.Params[k] = v
			}
		}
		return nil
	}

	name := g.paramNames[depth]
	for _, v := range g.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, cv := range current {
			next[k] = cv
		}
		next[name] = v
		if err := g.searchRecursive(ctx, depth+1, next, base, registry, metricName, best); err != nil {
			return err
		}
	}
	return nil
}

func (g *GridSearch) evaluate(ctx context.Context, params map[string]float64, base *config.Config, registry *scenario.Registry, metricName string) (float64, bool, error) {
	cfg := *base
	if err := cfg.Apply(params); err != nil {
		logger.Debug("candidate rejected", zap.Any("params", params), zap.Error(err))
		return 0, false, nil
	}

	exp := scenario.New(&cfg, registry)
	if err := exp.Setup(); err != nil {
		return 0, false, err
	}
	defer exp.Close()

	result, err := exp.Run(ctx)
	if err != nil {
		return 0, false, err
	}
	val, ok := result.Metrics[metricName]
	if !ok {
		return 0, false, fmt.Errorf("unknown metric %q", metricName)
	}
	if len(result.Errors) > 0 || math.IsNaN(val) {
		logger.Debug("candidate failed", zap.Any("params", params), zap.Int("errors", len(result.Errors)))
		return 0, false, nil
	}
	logger.Debug("candidate evaluated", zap.Any("params", params), zap.Float64(metricName, val))
	return val, true, nil
}
