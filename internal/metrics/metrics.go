// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the service
type Metrics struct {
	Registry *prometheus.Registry

	// Forecast engine
	ForecastsTotal   *prometheus.CounterVec // by outcome: ok, data_error, config_error, compute_error
	ForecastDuration prometheus.Histogram
	TrialsTotal      prometheus.Counter
	SeriesMonths     prometheus.Histogram

	// Cache
	CacheLookups *prometheus.CounterVec // by backend and result: hit, miss, error

	// HTTP
	HTTPRequests    *prometheus.CounterVec // by route and status code
	HTTPDuration    *prometheus.HistogramVec
	RateLimited     prometheus.Counter
	WarmerRuns      *prometheus.CounterVec // by outcome
	WarmerLastRunTS prometheus.Gauge
}

// New creates all collectors on a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates all collectors on reg
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ForecastsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wastecast_forecasts_total",
				Help: "Forecast requests by outcome",
			},
			[]string{"outcome"},
		),
		ForecastDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wastecast_forecast_duration_seconds",
			Help:    "Time spent computing a forecast, excluding cache hits",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		TrialsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "wastecast_simulation_trials_total",
			Help: "Monte-Carlo trials simulated",
		}),
		SeriesMonths: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wastecast_series_months",
			Help:    "Length of normalized historical series fed to the engine",
			Buckets: []float64{2, 6, 12, 24, 36, 60, 120, 240},
		}),

		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wastecast_cache_lookups_total",
				Help: "Forecast cache lookups by backend and result",
			},
			[]string{"backend", "result"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wastecast_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wastecast_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "wastecast_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
		WarmerRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wastecast_warmer_reports_total",
				Help: "Saved reports recomputed by the warmer, by outcome",
			},
			[]string{"outcome"},
		),
		WarmerLastRunTS: factory.NewGauge(prometheus.GaugeOpts{
			Name: "wastecast_warmer_last_run_timestamp_seconds",
			Help: "Unix time the warmer last finished a pass",
		}),
	}
}
