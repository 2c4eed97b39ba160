package forecast

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// noiseSource draws one residual-noise sample per simulated step
type noiseSource struct {
	rng       *rand.Rand
	residuals []float64
	gaussian  *distuv.Normal
}

func newNoiseSource(d *Decomposition, opts Options, trial int) *noiseSource {
	src := rand.NewPCG(opts.Seed, uint64(trial))
	ns := &noiseSource{
		rng:       rand.New(src),
		residuals: d.Residuals,
	}
	if len(d.Residuals) < opts.MinResampleResiduals {
		sigma := 0.0
		if len(d.Residuals) > 0 {
			sigma = stat.PopStdDev(d.Residuals, nil)
		}
		if sigma > 0 {
			ns.gaussian = &distuv.Normal{Mu: 0, Sigma: sigma, Src: src}
		}
		ns.residuals = nil
	}
	return ns
}

func (ns *noiseSource) next() float64 {
	switch {
	case ns.gaussian != nil:
		return ns.gaussian.Rand()
	case len(ns.residuals) > 0:
		return ns.residuals[ns.rng.IntN(len(ns.residuals))]
	default:
		return 0
	}
}

// Simulate produces opts.Iterations independent future paths of opts.Horizon
// steps each. Row t depends only on (opts.Seed, t), so the matrix is identical
// for any worker count. On cancellation the partial matrix is discarded.
func Simulate(ctx context.Context, d *Decomposition, opts Options) ([][]float64, error) {
	if opts.Iterations < 1 || opts.Horizon < 1 {
		return nil, &ConfigError{Field: "iterations", Reason: "simulation needs at least one trial and one step"}
	}

	// The deterministic component is shared by every trial
	base := make([]float64, opts.Horizon)
	for h := range base {
		base[h] = d.Predict(d.LastIndex + 1 + h)
	}

	matrix := make([][]float64, opts.Iterations)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > opts.Iterations {
		workers = opts.Iterations
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &ComputeError{Op: "simulate", Err: fmt.Errorf("worker %d panicked: %v", w, r)}
				}
			}()

			for t := w; t < opts.Iterations; t += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				matrix[t] = simulatePath(base, newNoiseSource(d, opts, t))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if IsComputeError(err) {
			return nil, err
		}
		return nil, &ComputeError{Op: "simulate", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ComputeError{Op: "simulate", Err: err}
	}
	return matrix, nil
}

func simulatePath(base []float64, noise *noiseSource) []float64 {
	path := make([]float64, len(base))
	for h, b := range base {
		v := b + noise.next()
		if v < 0 {
			v = 0
		}
		path[h] = v
	}
	return path
}
