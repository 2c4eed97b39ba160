// Package forecast implements the hybrid waste-generation forecasting engine:
// a linear trend plus monthly seasonal index, extrapolated by Monte-Carlo
// simulation with resampled residual noise and collapsed into a mean and a
// confidence band per future month.
package forecast

import (
	"fmt"
	"runtime"
	"strings"
)

// TimeSeriesPoint is one aggregated monthly observation
type TimeSeriesPoint struct {
	Period Period  `json:"period"`
	Value  float64 `json:"value"`
}

// ForecastStep is the ensemble summary for one future month
type ForecastStep struct {
	Step   int     `json:"step"`
	Period Period  `json:"period"`
	Mean   float64 `json:"mean"`
	Upper  float64 `json:"upper"`
	Lower  float64 `json:"lower"`
}

// Width returns the confidence band width
func (s ForecastStep) Width() float64 {
	return s.Upper - s.Lower
}

// SeasonalMode selects how the seasonal index combines with the trend
type SeasonalMode string

const (
	SeasonalMultiplicative SeasonalMode = "multiplicative"
	SeasonalAdditive       SeasonalMode = "additive"
)

// neutral returns the seasonal factor that leaves the trend unchanged
func (m SeasonalMode) neutral() float64 {
	if m == SeasonalMultiplicative {
		return 1.0
	}
	return 0.0
}

// BandMethod selects how the confidence band is derived from the trial values
type BandMethod string

const (
	// BandPercentile uses empirical quantiles of the trial values
	BandPercentile BandMethod = "percentile"

	// BandParametric uses mean ± z·σ of the trial values
	BandParametric BandMethod = "parametric"
)

// ParseSeasonalMode converts a configuration string to a SeasonalMode.
// An empty string selects the multiplicative default.
func ParseSeasonalMode(s string) (SeasonalMode, error) {
	switch SeasonalMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SeasonalMultiplicative:
		return SeasonalMultiplicative, nil
	case SeasonalAdditive:
		return SeasonalAdditive, nil
	}
	return "", &ConfigError{Field: "seasonal_mode", Reason: fmt.Sprintf("unknown mode %q", s)}
}

// ParseBandMethod converts a configuration string to a BandMethod.
// An empty string selects the percentile default.
func ParseBandMethod(s string) (BandMethod, error) {
	switch BandMethod(strings.ToLower(strings.TrimSpace(s))) {
	case "", BandPercentile:
		return BandPercentile, nil
	case BandParametric:
		return BandParametric, nil
	}
	return "", &ConfigError{Field: "band_method", Reason: fmt.Sprintf("unknown method %q", s)}
}

// Options controls a forecast run
type Options struct {
	// Iterations is the number of simulated paths
	Iterations int

	// Horizon is the number of future months to forecast
	Horizon int

	// Seed is the master seed. Trial t draws from a generator seeded with (Seed, t).
	Seed uint64

	// Workers is the number of goroutines running trials (0 = GOMAXPROCS)
	Workers int

	SeasonalMode SeasonalMode
	BandMethod   BandMethod

	// Confidence is the band coverage, e.g. 0.95 for the 2.5th/97.5th percentiles
	Confidence float64

	// MinResampleResiduals is the residual count below which noise is drawn
	// from a Gaussian instead of resampled
	MinResampleResiduals int

	// MinSeasonalMonths is the series length required to estimate seasonality
	MinSeasonalMonths int

	// MaxHorizon and MaxIterations cap request sizes (0 = unbounded)
	MaxHorizon    int
	MaxIterations int
}

// DefaultOptions returns the standard engine configuration
func DefaultOptions() Options {
	return Options{
		Iterations:           1000,
		Horizon:              12,
		Seed:                 1,
		Workers:              runtime.GOMAXPROCS(0),
		SeasonalMode:         SeasonalMultiplicative,
		BandMethod:           BandPercentile,
		Confidence:           0.95,
		MinResampleResiduals: 6,
		MinSeasonalMonths:    24,
		MaxHorizon:           120,
		MaxIterations:        100000,
	}
}

// Validate checks the options and returns a *ConfigError for the first problem found.
// Horizon is checked before iterations.
func (o Options) Validate() error {
	if o.Horizon < 1 {
		return &ConfigError{Field: "horizon", Reason: fmt.Sprintf("must be at least 1, got %d", o.Horizon)}
	}
	if o.MaxHorizon > 0 && o.Horizon > o.MaxHorizon {
		return &ConfigError{Field: "horizon", Reason: fmt.Sprintf("must not exceed %d, got %d", o.MaxHorizon, o.Horizon)}
	}
	if o.Iterations < 1 {
		return &ConfigError{Field: "iterations", Reason: fmt.Sprintf("must be at least 1, got %d", o.Iterations)}
	}
	if o.MaxIterations > 0 && o.Iterations > o.MaxIterations {
		return &ConfigError{Field: "iterations", Reason: fmt.Sprintf("must not exceed %d, got %d", o.MaxIterations, o.Iterations)}
	}
	if !(o.Confidence > 0 && o.Confidence < 1) {
		return &ConfigError{Field: "confidence", Reason: fmt.Sprintf("must be in (0, 1), got %v", o.Confidence)}
	}
	if o.SeasonalMode != SeasonalMultiplicative && o.SeasonalMode != SeasonalAdditive {
		return &ConfigError{Field: "seasonal_mode", Reason: fmt.Sprintf("unknown mode %q", o.SeasonalMode)}
	}
	if o.BandMethod != BandPercentile && o.BandMethod != BandParametric {
		return &ConfigError{Field: "band_method", Reason: fmt.Sprintf("unknown method %q", o.BandMethod)}
	}
	if o.Workers < 0 {
		return &ConfigError{Field: "workers", Reason: "must not be negative"}
	}
	if o.MinResampleResiduals < 0 || o.MinSeasonalMonths < 0 {
		return &ConfigError{Field: "thresholds", Reason: "must not be negative"}
	}
	return nil
}
