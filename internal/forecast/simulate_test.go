package forecast

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func testOptions(iterations, horizon int) Options {
	opts := DefaultOptions()
	opts.Iterations = iterations
	opts.Horizon = horizon
	return opts
}

func TestSimulateShapeAndClamp(t *testing.T) {
	// Falling series: the extrapolated trend goes negative within the horizon
	d := Decompose(seriesFrom(Period{2021, time.January}, 100, 80, 60, 41, 19, 2, 1, 0), SeasonalAdditive, 24)
	opts := testOptions(200, 6)

	matrix, err := Simulate(context.Background(), d, opts)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if len(matrix) != opts.Iterations {
		t.Fatalf("got %d rows, want %d", len(matrix), opts.Iterations)
	}
	for i, row := range matrix {
		if len(row) != opts.Horizon {
			t.Fatalf("row %d has %d steps, want %d", i, len(row), opts.Horizon)
		}
		for h, v := range row {
			if v < 0 {
				t.Errorf("matrix[%d][%d] = %v, want >= 0", i, h, v)
			}
		}
	}
}

func TestSimulateDeterministicAcrossWorkers(t *testing.T) {
	d := Decompose(seriesFrom(Period{2022, time.January}, alternating(24, 100, 110)...), SeasonalMultiplicative, 24)

	var reference [][]float64
	for _, workers := range []int{1, 4, 7} {
		opts := testOptions(300, 5)
		opts.Seed = 42
		opts.Workers = workers

		matrix, err := Simulate(context.Background(), d, opts)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if reference == nil {
			reference = matrix
			continue
		}
		if !reflect.DeepEqual(reference, matrix) {
			t.Errorf("workers=%d produced a different matrix", workers)
		}
	}

	opts := testOptions(300, 5)
	opts.Seed = 43
	other, err := Simulate(context.Background(), d, opts)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if reflect.DeepEqual(reference, other) {
		t.Error("different seeds produced identical matrices")
	}
}

func TestNoiseSourceSelection(t *testing.T) {
	opts := DefaultOptions()

	t.Run("resample when enough residuals", func(t *testing.T) {
		residuals := []float64{-3, -1, 0, 1, 2, 4, 5}
		ns := newNoiseSource(&Decomposition{Residuals: residuals}, opts, 0)
		if ns.gaussian != nil {
			t.Fatal("expected empirical resampling")
		}
		for i := 0; i < 100; i++ {
			v := ns.next()
			found := false
			for _, r := range residuals {
				if v == r {
					found = true
				}
			}
			if !found {
				t.Fatalf("draw %v is not one of the residuals", v)
			}
		}
	})

	t.Run("gaussian fallback for few residuals", func(t *testing.T) {
		ns := newNoiseSource(&Decomposition{Residuals: []float64{-2, 2, -2}}, opts, 0)
		if ns.gaussian == nil {
			t.Fatal("expected Gaussian fallback")
		}
		if ns.gaussian.Sigma <= 0 {
			t.Errorf("sigma = %v", ns.gaussian.Sigma)
		}
		distinct := map[float64]bool{}
		for i := 0; i < 20; i++ {
			distinct[ns.next()] = true
		}
		if len(distinct) < 10 {
			t.Errorf("expected continuous draws, got %d distinct values", len(distinct))
		}
	})

	t.Run("zero noise for zero spread", func(t *testing.T) {
		ns := newNoiseSource(&Decomposition{Residuals: []float64{0, 0}}, opts, 0)
		for i := 0; i < 10; i++ {
			if v := ns.next(); v != 0 {
				t.Fatalf("draw %v, want 0", v)
			}
		}
	})
}

func TestSimulateOutlierResistance(t *testing.T) {
	values := make([]float64, 18)
	for i := range values {
		values[i] = 100
	}
	values[9] = 1000
	d := Decompose(seriesFrom(Period{2022, time.January}, values...), SeasonalMultiplicative, 24)

	matrix, err := Simulate(context.Background(), d, testOptions(1000, 3))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	calm := 0
	for _, row := range matrix {
		peak := 0.0
		for _, v := range row {
			if v > peak {
				peak = v
			}
		}
		if peak < 500 {
			calm++
		}
	}
	if calm < len(matrix)/2 {
		t.Errorf("only %d of %d paths stayed below 500", calm, len(matrix))
	}

	steps, err := Aggregate(matrix, BandPercentile, 0.95)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	for _, s := range steps {
		if s.Mean >= 400 {
			t.Errorf("step %d mean %v, want < 400", s.Step, s.Mean)
		}
	}
}

func TestSimulateCancelled(t *testing.T) {
	d := Decompose(seriesFrom(Period{2022, time.January}, alternating(24, 100, 110)...), SeasonalMultiplicative, 24)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	matrix, err := Simulate(ctx, d, testOptions(1000, 12))
	if matrix != nil {
		t.Error("expected the matrix to be discarded")
	}
	if !IsComputeError(err) {
		t.Fatalf("expected ComputeError, got %T: %v", err, err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected the error to wrap context.Canceled, got %v", err)
	}
}
