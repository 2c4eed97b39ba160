package forecast

import (
	"context"
	"fmt"
)

// Result carries the forecast together with the intermediate products a
// report needs to explain it.
type Result struct {
	Steps         []ForecastStep
	Series        *NormalizedSeries
	Decomposition *Decomposition
}

// Engine runs the normalize → decompose → simulate → aggregate pipeline.
// It holds only its options and is safe for concurrent use.
type Engine struct {
	opts Options
}

// NewEngine returns an engine with the given options. Options are validated on each Run.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Options returns a copy of the engine's options
func (e *Engine) Options() Options {
	return e.opts
}

// Forecast runs the engine with default options and the default seed
func Forecast(ctx context.Context, series []TimeSeriesPoint, iterations, horizon int) ([]ForecastStep, error) {
	opts := DefaultOptions()
	opts.Iterations = iterations
	opts.Horizon = horizon

	res, err := NewEngine(opts).Run(ctx, series)
	if err != nil {
		return nil, err
	}
	return res.Steps, nil
}

// Run validates the options and the series, then produces exactly
// opts.Horizon steps. No partial result is returned on error.
func (e *Engine) Run(ctx context.Context, series []TimeSeriesPoint) (res *Result, err error) {
	if err := e.opts.Validate(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &ComputeError{Op: "pipeline", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	normalized, err := Normalize(series)
	if err != nil {
		return nil, err
	}

	decomposition := Decompose(normalized, e.opts.SeasonalMode, e.opts.MinSeasonalMonths)

	matrix, err := Simulate(ctx, decomposition, e.opts)
	if err != nil {
		return nil, err
	}

	steps, err := Aggregate(matrix, e.opts.BandMethod, e.opts.Confidence)
	if err != nil {
		return nil, err
	}

	first := normalized.End().Add(1)
	for i := range steps {
		steps[i].Period = first.Add(i)
	}

	return &Result{
		Steps:         steps,
		Series:        normalized,
		Decomposition: decomposition,
	}, nil
}
