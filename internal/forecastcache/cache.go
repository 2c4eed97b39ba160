// Package forecastcache stores computed forecasts keyed by filter and engine options.
package forecastcache

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/wastecast/internal/forecast"
	"github.com/vmihailenco/msgpack/v5"
)

// Entry is a cached forecast together with the series it was computed from
type Entry struct {
	Steps            []forecast.ForecastStep
	Series           []forecast.TimeSeriesPoint
	ImputedMonths    int
	TrendSlope       float64
	TrendStrength    float64
	SeasonalStrength float64
	ComputedAt       time.Time
}

// Cache is implemented by every backend. A miss is (nil, nil).
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Backend() string
	Close() error
}

// Key builds the cache key for a filter and the options that influence the result
func Key(filterKey string, opts forecast.Options) string {
	return fmt.Sprintf("%s|h=%d|n=%d|seed=%d|mode=%s|band=%s|c=%g",
		filterKey, opts.Horizon, opts.Iterations, opts.Seed, opts.SeasonalMode, opts.BandMethod, opts.Confidence)
}

func encodeEntry(entry *Entry) ([]byte, error) {
	data, err := msgpack.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return data, nil
}

func decodeEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &entry, nil
}

// Nop never stores anything
type Nop struct{}

func (Nop) Get(context.Context, string) (*Entry, error) { return nil, nil }
func (Nop) Set(context.Context, string, *Entry) error   { return nil }
func (Nop) Backend() string                             { return "none" }
func (Nop) Close() error                                { return nil }
