package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chrissnell/wastecast/internal/database"
	"github.com/chrissnell/wastecast/internal/forecast"
	"github.com/chrissnell/wastecast/internal/forecastcache"
	"github.com/chrissnell/wastecast/internal/metrics"
	"github.com/chrissnell/wastecast/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

type fakeSource struct {
	points []forecast.TimeSeriesPoint
	err    error
	calls  int
	last   database.SeriesFilter
}

func (f *fakeSource) MonthlySeries(_ context.Context, filter database.SeriesFilter) ([]forecast.TimeSeriesPoint, error) {
	f.calls++
	f.last = filter
	return f.points, f.err
}

func history(n int) []forecast.TimeSeriesPoint {
	start := forecast.Period{Year: 2021, Month: time.January}
	points := make([]forecast.TimeSeriesPoint, n)
	for i := range points {
		points[i] = forecast.TimeSeriesPoint{Period: start.Add(i), Value: 100 + float64(i%2)*10}
	}
	return points
}

func newTestService(t *testing.T, source SeriesSource, cache forecastcache.Cache) (*Service, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	opts := forecast.DefaultOptions()
	opts.Iterations = 200
	opts.Horizon = 6
	return NewService(source, cache, m, zap.NewNop().Sugar(), opts, time.Minute), m
}

func TestForecastEnvelope(t *testing.T) {
	source := &fakeSource{points: history(24)}
	svc, m := newTestService(t, source, nil)

	filter := database.SeriesFilter{Location: "depot-7"}
	env, err := svc.Forecast(context.Background(), Request{Filter: filter, Horizon: 3})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	if !env.Success || env.Horizon != 3 || len(env.SimResult) != 3 {
		t.Errorf("envelope success=%v horizon=%d steps=%d", env.Success, env.Horizon, len(env.SimResult))
	}
	if len(env.TimeSeriesData) != 24 {
		t.Errorf("got %d history points, want 24", len(env.TimeSeriesData))
	}
	if env.Meta.Iterations != 200 || env.Meta.Seed != 1 || env.Meta.Cached {
		t.Errorf("unexpected meta %+v", env.Meta)
	}
	if source.last.Location != "depot-7" {
		t.Errorf("filter not passed through: %+v", source.last)
	}
	if got := testutil.ToFloat64(m.ForecastsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok outcomes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TrialsTotal); got != 200 {
		t.Errorf("trials = %v, want 200", got)
	}
}

func TestForecastUsesCache(t *testing.T) {
	source := &fakeSource{points: history(24)}
	cache := forecastcache.NewLRU(16, time.Hour)
	svc, m := newTestService(t, source, cache)

	req := Request{Filter: database.SeriesFilter{Company: "acme"}}
	first, err := svc.Forecast(context.Background(), req)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	second, err := svc.Forecast(context.Background(), req)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	if source.calls != 1 {
		t.Errorf("source called %d times, want 1", source.calls)
	}
	if !second.Meta.Cached || first.Meta.Cached {
		t.Errorf("cached flags first=%v second=%v", first.Meta.Cached, second.Meta.Cached)
	}
	for i := range first.SimResult {
		if first.SimResult[i] != second.SimResult[i] {
			t.Errorf("step %d differs between computed and cached result", i)
		}
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("lru", "hit")); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}

	// A different seed is a different cache key
	seed := uint64(99)
	if _, err := svc.Forecast(context.Background(), Request{Filter: req.Filter, Seed: &seed}); err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if source.calls != 2 {
		t.Errorf("source called %d times, want 2", source.calls)
	}

	// Refresh always recomputes
	if _, err := svc.Refresh(context.Background(), req); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if source.calls != 3 {
		t.Errorf("source called %d times after refresh, want 3", source.calls)
	}
}

func TestForecastErrors(t *testing.T) {
	storeErr := errors.New("connection refused")

	tests := []struct {
		name    string
		source  *fakeSource
		req     Request
		check   func(error) bool
		outcome string
		fetched bool
	}{
		{
			name:    "bad horizon rejected before the store",
			source:  &fakeSource{points: history(24)},
			req:     Request{Horizon: -1},
			check:   forecast.IsConfigError,
			outcome: "config_error",
		},
		{
			name:    "empty series",
			source:  &fakeSource{},
			req:     Request{},
			check:   forecast.IsDataError,
			outcome: "data_error",
			fetched: true,
		},
		{
			name:    "store failure",
			source:  &fakeSource{err: storeErr},
			req:     Request{},
			check:   func(err error) bool { return errors.Is(err, storeErr) },
			outcome: "store_error",
			fetched: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService(t, tt.source, nil)
			env, err := svc.Forecast(context.Background(), tt.req)
			if env != nil {
				t.Error("expected no envelope")
			}
			if !tt.check(err) {
				t.Fatalf("unexpected error %T: %v", err, err)
			}
			if Outcome(err) != tt.outcome {
				t.Errorf("Outcome = %q, want %q", Outcome(err), tt.outcome)
			}
			if got := testutil.ToFloat64(m.ForecastsTotal.WithLabelValues(tt.outcome)); got != 1 {
				t.Errorf("%s outcomes = %v, want 1", tt.outcome, got)
			}
			if (tt.source.calls > 0) != tt.fetched {
				t.Errorf("store calls = %d, fetched = %v", tt.source.calls, tt.fetched)
			}
		})
	}
}

func TestTimeSeries(t *testing.T) {
	source := &fakeSource{points: history(5)}
	svc, _ := newTestService(t, source, nil)

	points, err := svc.TimeSeries(context.Background(), database.SeriesFilter{Title: "cardboard"})
	if err != nil {
		t.Fatalf("TimeSeries: %v", err)
	}
	if len(points) != 5 || source.last.Title != "cardboard" {
		t.Errorf("got %d points, filter %+v", len(points), source.last)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	seven := uint64(7)
	opts, err := OptionsFromConfig(config.ForecastData{
		DefaultHorizon: 18,
		Iterations:     5000,
		Seed:           &seven,
		SeasonalMode:   "additive",
		BandMethod:     "parametric",
		Confidence:     0.9,
	})
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	if opts.Horizon != 18 || opts.Iterations != 5000 || opts.Seed != 7 {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.SeasonalMode != forecast.SeasonalAdditive || opts.BandMethod != forecast.BandParametric || opts.Confidence != 0.9 {
		t.Errorf("unexpected modes %+v", opts)
	}

	zero := uint64(0)
	opts, err = OptionsFromConfig(config.ForecastData{Seed: &zero})
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	if opts.Seed != 0 {
		t.Errorf("explicit zero seed ignored, got %d", opts.Seed)
	}
	if opts, _ := OptionsFromConfig(config.ForecastData{}); opts.Seed != forecast.DefaultOptions().Seed {
		t.Errorf("unset seed should keep the default, got %d", opts.Seed)
	}

	if _, err := OptionsFromConfig(config.ForecastData{SeasonalMode: "log"}); !forecast.IsConfigError(err) {
		t.Errorf("expected ConfigError, got %v", err)
	}
	if _, err := OptionsFromConfig(config.ForecastData{DefaultHorizon: 200, MaxHorizon: 120}); !forecast.IsConfigError(err) {
		t.Errorf("expected ConfigError for horizon over the cap, got %v", err)
	}
}
