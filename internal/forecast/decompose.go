package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Decomposition splits a series into a linear trend, a 12-month seasonal
// index and the residual noise left over.
type Decomposition struct {
	Mode           SeasonalMode
	TrendSlope     float64
	TrendIntercept float64

	// SeasonalIndex is keyed by calendar month, index 0 = January. It averages
	// to 1.0 in multiplicative mode and 0.0 in additive mode.
	SeasonalIndex [12]float64

	Residuals []float64

	// Start is the calendar month of series index 0
	Start Period

	// LastIndex is the series index of the last observed month
	LastIndex int
}

// Trend returns the trend value at series index i
func (d *Decomposition) Trend(i int) float64 {
	return d.TrendSlope*float64(i) + d.TrendIntercept
}

// Seasonal returns the seasonal factor for series index i
func (d *Decomposition) Seasonal(i int) float64 {
	return d.SeasonalIndex[monthSlot(d.Start, i)]
}

// Predict returns the noise-free prediction (trend combined with seasonality) at series index i
func (d *Decomposition) Predict(i int) float64 {
	return combine(d.Mode, d.Trend(i), d.Seasonal(i))
}

// Strength reports how much of the series' variation is explained by the trend
// and by the seasonal index, each in [0, 1]. It follows the usual
// 1 - Var(R)/Var(component+R) measure.
func (d *Decomposition) Strength() (trend, seasonal float64) {
	n := len(d.Residuals)
	if n < 2 {
		return 0, 0
	}

	withTrend := make([]float64, n)
	withSeason := make([]float64, n)
	for i, r := range d.Residuals {
		t := d.Trend(i)
		s := d.Seasonal(i)
		if d.Mode == SeasonalMultiplicative {
			// Work on the additive scale of the fitted components
			withTrend[i] = t + r
			withSeason[i] = t*(s-1) + r
		} else {
			withTrend[i] = t + r
			withSeason[i] = s + r
		}
	}

	varR := stat.Variance(d.Residuals, nil)
	return strength(varR, stat.Variance(withTrend, nil)), strength(varR, stat.Variance(withSeason, nil))
}

func strength(residualVar, totalVar float64) float64 {
	if totalVar <= 0 || math.IsNaN(totalVar) {
		return 0
	}
	return math.Max(0, math.Min(1, 1-residualVar/totalVar))
}

// Decompose fits a least-squares trend over the series index, estimates a
// monthly seasonal index when at least minSeasonalMonths months are present,
// and records the residuals. It never fails on a validated series.
func Decompose(s *NormalizedSeries, mode SeasonalMode, minSeasonalMonths int) *Decomposition {
	n := len(s.Values)
	d := &Decomposition{
		Mode:      mode,
		Start:     s.Start,
		LastIndex: n - 1,
		Residuals: make([]float64, n),
	}
	for m := range d.SeasonalIndex {
		d.SeasonalIndex[m] = mode.neutral()
	}

	d.TrendIntercept, d.TrendSlope = fitTrend(s.Values)

	if n >= minSeasonalMonths && minSeasonalMonths > 0 {
		d.SeasonalIndex = seasonalIndex(s, mode, d)
	}

	for i, v := range s.Values {
		d.Residuals[i] = v - d.Predict(i)
	}
	return d
}

// fitTrend returns the OLS intercept and slope of values against 0..n-1.
// A constant series is snapped to an exact flat line so its residuals are zero.
func fitTrend(values []float64) (intercept, slope float64) {
	n := len(values)
	constant := true
	for _, v := range values[1:] {
		if v != values[0] {
			constant = false
			break
		}
	}
	if constant {
		return values[0], 0
	}

	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	intercept, slope = stat.LinearRegression(x, values, nil, false)
	return intercept, slope
}

// seasonalIndex averages the detrended ratio (or difference) of observed
// months per calendar month, then re-centers the twelve factors to average
// to neutral. Carried-forward months do not contribute.
func seasonalIndex(s *NormalizedSeries, mode SeasonalMode, d *Decomposition) [12]float64 {
	var sums [12]float64
	var counts [12]int

	for i, v := range s.Values {
		if i < len(s.Imputed) && s.Imputed[i] {
			continue
		}
		slot := monthSlot(s.Start, i)
		t := d.Trend(i)
		switch mode {
		case SeasonalMultiplicative:
			if t <= 0 {
				continue
			}
			sums[slot] += v / t
		default:
			sums[slot] += v - t
		}
		counts[slot]++
	}

	neutral := mode.neutral()
	var index [12]float64
	total := 0.0
	for m := range index {
		if counts[m] == 0 {
			index[m] = neutral
		} else {
			index[m] = sums[m] / float64(counts[m])
		}
		total += index[m]
	}

	mean := total / 12
	for m := range index {
		switch mode {
		case SeasonalMultiplicative:
			if mean > 0 {
				index[m] /= mean
			} else {
				index[m] = neutral
			}
		default:
			index[m] -= mean
		}
	}
	return index
}

// monthSlot returns the 0-based calendar month of series index i
func monthSlot(start Period, i int) int {
	return int(start.Add(i).Month) - 1
}

func combine(mode SeasonalMode, trend, seasonal float64) float64 {
	if mode == SeasonalMultiplicative {
		return trend * seasonal
	}
	return trend + seasonal
}
