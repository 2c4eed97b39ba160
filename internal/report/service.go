// Package report turns a filtered slice of the waste report store into a
// forecast envelope, going through the forecast cache.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/wastecast/internal/database"
	"github.com/chrissnell/wastecast/internal/forecast"
	"github.com/chrissnell/wastecast/internal/forecastcache"
	"github.com/chrissnell/wastecast/internal/metrics"
	"github.com/chrissnell/wastecast/internal/tracing"
	"github.com/chrissnell/wastecast/pkg/config"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SeriesSource supplies monthly aggregated series. *database.Client implements it.
type SeriesSource interface {
	MonthlySeries(ctx context.Context, filter database.SeriesFilter) ([]forecast.TimeSeriesPoint, error)
}

// Request describes one forecast report. Zero Horizon and Iterations take the service defaults.
type Request struct {
	Filter     database.SeriesFilter
	Horizon    int
	Iterations int
	Seed       *uint64
}

// Envelope is the response body of a successful forecast report
type Envelope struct {
	Success        bool                       `json:"success"`
	Horizon        int                        `json:"horizon"`
	SimResult      []forecast.ForecastStep    `json:"simResult"`
	TimeSeriesData []forecast.TimeSeriesPoint `json:"timeSeriesData"`
	Meta           Meta                       `json:"meta"`
}

// Meta explains how the forecast was produced
type Meta struct {
	Iterations       int       `json:"iterations"`
	Seed             uint64    `json:"seed"`
	ImputedMonths    int       `json:"imputedMonths"`
	TrendSlope       float64   `json:"trendSlope"`
	TrendStrength    float64   `json:"trendStrength"`
	SeasonalStrength float64   `json:"seasonalStrength"`
	Cached           bool      `json:"cached"`
	ComputedAt       time.Time `json:"computedAt"`
}

// Service computes forecast reports
type Service struct {
	source   SeriesSource
	cache    forecastcache.Cache
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger
	defaults forecast.Options
	timeout  time.Duration
}

// NewService creates a report service. A nil cache disables caching.
func NewService(source SeriesSource, cache forecastcache.Cache, m *metrics.Metrics, logger *zap.SugaredLogger, defaults forecast.Options, timeout time.Duration) *Service {
	if cache == nil {
		cache = forecastcache.Nop{}
	}
	return &Service{
		source:   source,
		cache:    cache,
		metrics:  m,
		logger:   logger,
		defaults: defaults,
		timeout:  timeout,
	}
}

// Defaults returns the engine options applied to requests
func (s *Service) Defaults() forecast.Options {
	return s.defaults
}

// OptionsFromConfig converts the forecast configuration section into engine options
func OptionsFromConfig(cfg config.ForecastData) (forecast.Options, error) {
	opts := forecast.DefaultOptions()

	mode, err := forecast.ParseSeasonalMode(cfg.SeasonalMode)
	if err != nil {
		return opts, err
	}
	band, err := forecast.ParseBandMethod(cfg.BandMethod)
	if err != nil {
		return opts, err
	}
	opts.SeasonalMode = mode
	opts.BandMethod = band

	if cfg.DefaultHorizon > 0 {
		opts.Horizon = cfg.DefaultHorizon
	}
	if cfg.MaxHorizon > 0 {
		opts.MaxHorizon = cfg.MaxHorizon
	}
	if cfg.Iterations > 0 {
		opts.Iterations = cfg.Iterations
	}
	if cfg.MaxIterations > 0 {
		opts.MaxIterations = cfg.MaxIterations
	}
	if cfg.Seed != nil {
		opts.Seed = *cfg.Seed
	}
	if cfg.Workers > 0 {
		opts.Workers = cfg.Workers
	}
	if cfg.Confidence > 0 {
		opts.Confidence = cfg.Confidence
	}

	return opts, opts.Validate()
}

// options merges a request over the service defaults
func (s *Service) options(req Request) forecast.Options {
	opts := s.defaults
	if req.Horizon != 0 {
		opts.Horizon = req.Horizon
	}
	if req.Iterations != 0 {
		opts.Iterations = req.Iterations
	}
	if req.Seed != nil {
		opts.Seed = *req.Seed
	}
	return opts
}

// Forecast returns the report for req, from cache when possible
func (s *Service) Forecast(ctx context.Context, req Request) (*Envelope, error) {
	return s.forecast(ctx, req, true)
}

// Refresh recomputes req and stores the result, ignoring any cached entry
func (s *Service) Refresh(ctx context.Context, req Request) (*Envelope, error) {
	return s.forecast(ctx, req, false)
}

func (s *Service) forecast(ctx context.Context, req Request, useCache bool) (env *Envelope, err error) {
	opts := s.options(req)

	ctx, span := tracing.StartSpan(ctx, "report.forecast",
		attribute.Int("forecast.horizon", opts.Horizon),
		attribute.Int("forecast.iterations", opts.Iterations),
		attribute.String("forecast.filter", req.Filter.Key()))
	defer func() { tracing.EndSpan(span, err) }()

	// Reject bad parameters before touching the store
	if err := opts.Validate(); err != nil {
		s.recordOutcome(err)
		return nil, err
	}

	key := forecastcache.Key(req.Filter.Key(), opts)
	if useCache {
		if entry := s.lookup(ctx, key); entry != nil {
			s.recordOutcome(nil)
			return envelopeFromEntry(entry, opts, true), nil
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	series, err := s.fetch(ctx, req.Filter)
	if err != nil {
		s.recordOutcome(err)
		return nil, err
	}

	started := time.Now()
	result, err := forecast.NewEngine(opts).Run(ctx, series)
	if err != nil {
		s.recordOutcome(err)
		return nil, err
	}
	s.metrics.ForecastDuration.Observe(time.Since(started).Seconds())
	s.metrics.TrialsTotal.Add(float64(opts.Iterations))
	s.metrics.SeriesMonths.Observe(float64(result.Series.Len()))
	s.recordOutcome(nil)

	trendStrength, seasonalStrength := result.Decomposition.Strength()
	entry := &forecastcache.Entry{
		Steps:            result.Steps,
		Series:           series,
		ImputedMonths:    result.Series.ImputedCount(),
		TrendSlope:       result.Decomposition.TrendSlope,
		TrendStrength:    trendStrength,
		SeasonalStrength: seasonalStrength,
		ComputedAt:       time.Now().UTC(),
	}

	if err := s.cache.Set(ctx, key, entry); err != nil {
		s.logger.Warnw("failed to store forecast in cache", "backend", s.cache.Backend(), "error", err)
	}

	return envelopeFromEntry(entry, opts, false), nil
}

// TimeSeries returns the monthly historical series for filter
func (s *Service) TimeSeries(ctx context.Context, filter database.SeriesFilter) (points []forecast.TimeSeriesPoint, err error) {
	ctx, span := tracing.StartSpan(ctx, "report.timeseries", attribute.String("forecast.filter", filter.Key()))
	defer func() { tracing.EndSpan(span, err) }()

	return s.fetch(ctx, filter)
}

func (s *Service) fetch(ctx context.Context, filter database.SeriesFilter) (points []forecast.TimeSeriesPoint, err error) {
	ctx, span := tracing.StartSpan(ctx, "report.fetch_series")
	defer func() { tracing.EndSpan(span, err) }()

	points, err = s.source.MonthlySeries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load series: %w", err)
	}
	span.SetAttributes(attribute.Int("series.months", len(points)))
	return points, nil
}

func (s *Service) lookup(ctx context.Context, key string) *forecastcache.Entry {
	backend := s.cache.Backend()
	entry, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.metrics.CacheLookups.WithLabelValues(backend, "error").Inc()
		s.logger.Warnw("forecast cache lookup failed", "backend", backend, "error", err)
		return nil
	case entry == nil:
		s.metrics.CacheLookups.WithLabelValues(backend, "miss").Inc()
		return nil
	default:
		s.metrics.CacheLookups.WithLabelValues(backend, "hit").Inc()
		return entry
	}
}

func (s *Service) recordOutcome(err error) {
	s.metrics.ForecastsTotal.WithLabelValues(Outcome(err)).Inc()
}

// Outcome classifies an error for metrics and logs
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case forecast.IsConfigError(err):
		return "config_error"
	case forecast.IsDataError(err):
		return "data_error"
	case forecast.IsComputeError(err):
		return "compute_error"
	default:
		return "store_error"
	}
}

func envelopeFromEntry(entry *forecastcache.Entry, opts forecast.Options, cached bool) *Envelope {
	series := entry.Series
	if series == nil {
		series = []forecast.TimeSeriesPoint{}
	}
	return &Envelope{
		Success:        true,
		Horizon:        opts.Horizon,
		SimResult:      entry.Steps,
		TimeSeriesData: series,
		Meta: Meta{
			Iterations:       opts.Iterations,
			Seed:             opts.Seed,
			ImputedMonths:    entry.ImputedMonths,
			TrendSlope:       entry.TrendSlope,
			TrendStrength:    entry.TrendStrength,
			SeasonalStrength: entry.SeasonalStrength,
			Cached:           cached,
			ComputedAt:       entry.ComputedAt,
		},
	}
}
