package forecast

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

func monthly(start Period, values ...float64) []TimeSeriesPoint {
	points := make([]TimeSeriesPoint, len(values))
	for i, v := range values {
		points[i] = TimeSeriesPoint{Period: start.Add(i), Value: v}
	}
	return points
}

// wavy returns n months with trend, seasonality and a fixed irregular component,
// kept far from zero so clamping never engages.
func wavy(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		irregular := float64((i*37)%11-5) * 2
		values[i] = 500 + 3*float64(i) + 40*math.Sin(2*math.Pi*float64(i)/12) + irregular
	}
	return values
}

func TestForecastShapeAndOrdering(t *testing.T) {
	series := monthly(Period{2020, time.January}, wavy(30)...)

	for _, horizon := range []int{1, 6, 12, 36} {
		steps, err := Forecast(context.Background(), series, 500, horizon)
		if err != nil {
			t.Fatalf("horizon %d: %v", horizon, err)
		}
		if len(steps) != horizon {
			t.Fatalf("horizon %d: got %d steps", horizon, len(steps))
		}

		next := Period{2022, time.July}
		for i, s := range steps {
			if s.Step != i {
				t.Errorf("steps[%d].Step = %d", i, s.Step)
			}
			if s.Period != next.Add(i) {
				t.Errorf("steps[%d].Period = %s, want %s", i, s.Period, next.Add(i))
			}
			if !(s.Lower <= s.Mean && s.Mean <= s.Upper) {
				t.Errorf("steps[%d]: %v <= %v <= %v violated", i, s.Lower, s.Mean, s.Upper)
			}
			if s.Mean < 0 {
				t.Errorf("steps[%d].Mean = %v, want >= 0", i, s.Mean)
			}
		}
	}
}

func TestForecastDeterministic(t *testing.T) {
	series := monthly(Period{2020, time.January}, wavy(30)...)

	first, err := Forecast(context.Background(), series, 400, 12)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	second, err := Forecast(context.Background(), series, 400, 12)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated calls with the same seed differ")
	}

	var reference []ForecastStep
	for _, workers := range []int{1, 4, 7} {
		opts := testOptions(400, 12)
		opts.Workers = workers
		res, err := NewEngine(opts).Run(context.Background(), series)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if reference == nil {
			reference = res.Steps
			continue
		}
		if !reflect.DeepEqual(reference, res.Steps) {
			t.Errorf("workers=%d changed the forecast", workers)
		}
	}
}

func TestForecastBandWidthDoesNotShrink(t *testing.T) {
	series := monthly(Period{2018, time.January}, wavy(48)...)
	const (
		horizon = 12
		seeds   = 50
	)

	widths := make([]float64, horizon)
	for seed := uint64(1); seed <= seeds; seed++ {
		opts := testOptions(2000, horizon)
		opts.Seed = seed
		res, err := NewEngine(opts).Run(context.Background(), series)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		for h, s := range res.Steps {
			widths[h] += s.Width() / seeds
		}
	}

	for h := 1; h < horizon; h++ {
		if widths[h] < widths[h-1]*0.95 {
			t.Errorf("average width shrank from %v at step %d to %v at step %d", widths[h-1], h-1, widths[h], h)
		}
	}
}

func TestForecastEqualPoints(t *testing.T) {
	series := monthly(Period{2023, time.January}, 50, 50)

	steps, err := Forecast(context.Background(), series, 1000, 4)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	for _, s := range steps {
		if s.Mean != 50 || s.Lower != 50 || s.Upper != 50 {
			t.Errorf("step %d = {%v %v %v}, want exactly 50 with zero width", s.Step, s.Lower, s.Mean, s.Upper)
		}
	}
}

func TestForecastAlternatingSeries(t *testing.T) {
	series := monthly(Period{2022, time.January}, alternating(24, 100, 110)...)

	steps, err := Forecast(context.Background(), series, 1000, 3)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	expected := []float64{100, 110, 100}
	for i, s := range steps {
		if math.Abs(s.Mean-expected[i]) > 3 {
			t.Errorf("step %d mean = %v, want %v ± 3", i, s.Mean, expected[i])
		}
		if w := s.Width(); w <= 0 || w >= 20 {
			t.Errorf("step %d band width = %v, want (0, 20)", i, w)
		}
	}
}

func TestForecastValidation(t *testing.T) {
	good := monthly(Period{2023, time.January}, 10, 12, 14)

	tests := []struct {
		name       string
		series     []TimeSeriesPoint
		iterations int
		horizon    int
		field      string
		data       bool
	}{
		{name: "zero horizon", series: good, iterations: 100, horizon: 0, field: "horizon"},
		{name: "horizon over the cap", series: good, iterations: 100, horizon: 121, field: "horizon"},
		{name: "zero iterations", series: good, iterations: 0, horizon: 3, field: "iterations"},
		{name: "iterations over the cap", series: good, iterations: 100001, horizon: 3, field: "iterations"},
		{name: "horizon checked before iterations", series: good, iterations: 0, horizon: 0, field: "horizon"},
		{name: "config checked before data", series: nil, iterations: 0, horizon: 3, field: "iterations"},
		{name: "single point", series: good[:1], iterations: 100, horizon: 3, data: true},
		{name: "empty series", series: nil, iterations: 100, horizon: 3, data: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := Forecast(context.Background(), tt.series, tt.iterations, tt.horizon)
			if steps != nil {
				t.Errorf("expected no steps, got %d", len(steps))
			}
			if tt.data {
				if !IsDataError(err) {
					t.Fatalf("expected DataError, got %T: %v", err, err)
				}
				return
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %T: %v", err, err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestEngineOptionValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		field  string
	}{
		{"confidence of one", func(o *Options) { o.Confidence = 1 }, "confidence"},
		{"unknown seasonal mode", func(o *Options) { o.SeasonalMode = "cubic" }, "seasonal_mode"},
		{"unknown band", func(o *Options) { o.BandMethod = "bootstrap" }, "band_method"},
		{"negative workers", func(o *Options) { o.Workers = -1 }, "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			_, err := NewEngine(opts).Run(context.Background(), monthly(Period{2023, time.January}, 1, 2))
			var ce *ConfigError
			if !errors.As(err, &ce) || ce.Field != tt.field {
				t.Errorf("expected ConfigError on %q, got %v", tt.field, err)
			}
		})
	}
}

func TestParseModes(t *testing.T) {
	if m, err := ParseSeasonalMode(""); err != nil || m != SeasonalMultiplicative {
		t.Errorf("ParseSeasonalMode(\"\") = %v, %v", m, err)
	}
	if m, err := ParseSeasonalMode("Additive"); err != nil || m != SeasonalAdditive {
		t.Errorf("ParseSeasonalMode(Additive) = %v, %v", m, err)
	}
	if _, err := ParseSeasonalMode("log"); !IsConfigError(err) {
		t.Errorf("expected ConfigError, got %v", err)
	}
	if b, err := ParseBandMethod("parametric"); err != nil || b != BandParametric {
		t.Errorf("ParseBandMethod(parametric) = %v, %v", b, err)
	}
	if _, err := ParseBandMethod("iqr"); !IsConfigError(err) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}

func TestEngineRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewEngine(DefaultOptions()).Run(ctx, monthly(Period{2020, time.January}, wavy(30)...))
	if res != nil {
		t.Error("expected no result after cancellation")
	}
	if !IsComputeError(err) || !errors.Is(err, context.Canceled) {
		t.Errorf("expected ComputeError wrapping context.Canceled, got %v", err)
	}
}

func TestEngineResult(t *testing.T) {
	series := monthly(Period{2020, time.January}, wavy(30)...)
	series = append(series[:10], series[12:]...)

	res, err := NewEngine(testOptions(100, 3)).Run(context.Background(), series)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Series.Len() != 30 || res.Series.ImputedCount() != 2 {
		t.Errorf("series len %d imputed %d, want 30 and 2", res.Series.Len(), res.Series.ImputedCount())
	}
	if res.Decomposition.LastIndex != 29 {
		t.Errorf("LastIndex = %d, want 29", res.Decomposition.LastIndex)
	}
	if res.Decomposition.TrendSlope <= 0 {
		t.Errorf("TrendSlope = %v, expected upward trend", res.Decomposition.TrendSlope)
	}
}
