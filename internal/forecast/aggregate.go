package forecast

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Aggregate collapses an iterations × horizon matrix into one ForecastStep per
// column. Step periods are left zero; the engine fills them in.
func Aggregate(matrix [][]float64, band BandMethod, confidence float64) ([]ForecastStep, error) {
	if len(matrix) == 0 || len(matrix[0]) == 0 {
		return nil, &ComputeError{Op: "aggregate", Err: fmt.Errorf("empty simulation matrix")}
	}
	if !(confidence > 0 && confidence < 1) {
		return nil, &ConfigError{Field: "confidence", Reason: fmt.Sprintf("must be in (0, 1), got %v", confidence)}
	}

	horizon := len(matrix[0])
	for t, row := range matrix {
		if len(row) != horizon {
			return nil, &ComputeError{Op: "aggregate", Err: fmt.Errorf("trial %d has %d steps, expected %d", t, len(row), horizon)}
		}
	}

	steps := make([]ForecastStep, horizon)
	column := make([]float64, len(matrix))
	for h := 0; h < horizon; h++ {
		for t, row := range matrix {
			column[t] = row[h]
		}

		var lower, mean, upper float64
		if v, ok := uniform(column); ok {
			lower, mean, upper = v, v, v
		} else {
			switch band {
			case BandParametric:
				lower, mean, upper = parametricBand(column, confidence)
			default:
				lower, mean, upper = percentileBand(column, confidence)
			}
		}

		for _, v := range []float64{lower, mean, upper} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &ComputeError{Op: "aggregate", Err: fmt.Errorf("non-finite statistic at step %d", h)}
			}
		}

		steps[h] = ForecastStep{
			Step:  h,
			Mean:  mean,
			Lower: math.Min(lower, mean),
			Upper: math.Max(upper, mean),
		}
	}
	return steps, nil
}

// uniform reports whether every value in the column is identical
func uniform(column []float64) (float64, bool) {
	for _, v := range column[1:] {
		if v != column[0] {
			return 0, false
		}
	}
	return column[0], true
}

// percentileBand sorts column in place
func percentileBand(column []float64, confidence float64) (lower, mean, upper float64) {
	mean = stat.Mean(column, nil)
	sort.Float64s(column)
	tail := (1 - confidence) / 2
	lower = stat.Quantile(tail, stat.Empirical, column, nil)
	upper = stat.Quantile(1-tail, stat.Empirical, column, nil)
	return lower, mean, upper
}

func parametricBand(column []float64, confidence float64) (lower, mean, upper float64) {
	mean = stat.Mean(column, nil)
	sigma := stat.PopStdDev(column, nil)
	z := distuv.UnitNormal.Quantile((1 + confidence) / 2)
	return mean - z*sigma, mean, mean + z*sigma
}
