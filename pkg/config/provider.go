// Package config loads wastecast configuration from YAML files or SQLite databases.
package config

import (
	"fmt"
	"time"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetDatabaseConfig() (*DatabaseData, error)
	GetForecastConfig() (*ForecastData, error)
	GetServerConfig() (*ServerData, error)
	GetSavedReports() ([]SavedReportData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Database     DatabaseData      `json:"database"`
	Forecast     ForecastData      `json:"forecast"`
	Server       ServerData        `json:"server"`
	Cache        CacheData         `json:"cache"`
	Tracing      TracingData       `json:"tracing"`
	Warmer       WarmerData        `json:"warmer"`
	SavedReports []SavedReportData `json:"saved_reports,omitempty"`
}

// DatabaseData holds the waste report store connection
type DatabaseData struct {
	ConnectionString string `json:"connection_string,omitempty"`
}

// ForecastData holds engine defaults and request caps
type ForecastData struct {
	DefaultHorizon int     `json:"default_horizon,omitempty"`
	MaxHorizon     int     `json:"max_horizon,omitempty"`
	Iterations     int     `json:"iterations,omitempty"`
	MaxIterations  int     `json:"max_iterations,omitempty"`
	Seed           *uint64 `json:"seed,omitempty"`
	Workers        int     `json:"workers,omitempty"`
	SeasonalMode   string  `json:"seasonal_mode,omitempty"`
	BandMethod     string  `json:"band_method,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
}

// ServerData holds the REST listener settings
type ServerData struct {
	ListenAddr      string  `json:"listen_addr,omitempty"`
	Port            int     `json:"port,omitempty"`
	TLSCert         string  `json:"tls_cert,omitempty"`
	TLSKey          string  `json:"tls_key,omitempty"`
	RateLimit       float64 `json:"rate_limit,omitempty"`
	RateBurst       int     `json:"rate_burst,omitempty"`
	ForecastTimeout string  `json:"forecast_timeout,omitempty"`
}

// CacheData selects the forecast cache backend
type CacheData struct {
	Backend       string `json:"backend,omitempty"` // none, lru or redis
	Size          int    `json:"size,omitempty"`
	TTL           string `json:"ttl,omitempty"`
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
}

// TracingData configures OpenTelemetry export
type TracingData struct {
	Enabled     bool    `json:"enabled,omitempty"`
	Endpoint    string  `json:"endpoint,omitempty"`
	SampleRate  float64 `json:"sample_rate,omitempty"`
	ServiceName string  `json:"service_name,omitempty"`
}

// WarmerData schedules background recomputation of saved reports
type WarmerData struct {
	Enabled  bool   `json:"enabled,omitempty"`
	Schedule string `json:"schedule,omitempty"`
}

// SavedReportData is a named filter set that the warmer precomputes
type SavedReportData struct {
	Name     string `json:"name"`
	Title    string `json:"title,omitempty"`
	Location string `json:"location,omitempty"`
	Author   string `json:"author,omitempty"`
	Company  string `json:"company,omitempty"`
	Horizon  int    `json:"horizon,omitempty"`
}

// Cache backends
const (
	CacheNone  = "none"
	CacheLRU   = "lru"
	CacheRedis = "redis"
)

// ApplyDefaults fills zero values with the standard settings
func (c *ConfigData) ApplyDefaults() {
	f := &c.Forecast
	if f.DefaultHorizon == 0 {
		f.DefaultHorizon = 12
	}
	if f.MaxHorizon == 0 {
		f.MaxHorizon = 120
	}
	if f.Iterations == 0 {
		f.Iterations = 1000
	}
	if f.MaxIterations == 0 {
		f.MaxIterations = 100000
	}
	// An unset seed defaults to 1; an explicit 0 is a valid seed
	if f.Seed == nil {
		seed := uint64(1)
		f.Seed = &seed
	}
	if f.SeasonalMode == "" {
		f.SeasonalMode = "multiplicative"
	}
	if f.BandMethod == "" {
		f.BandMethod = "percentile"
	}
	if f.Confidence == 0 {
		f.Confidence = 0.95
	}

	s := &c.Server
	if s.ListenAddr == "" {
		s.ListenAddr = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.RateLimit == 0 {
		s.RateLimit = 10
	}
	if s.RateBurst == 0 {
		s.RateBurst = 20
	}
	if s.ForecastTimeout == "" {
		s.ForecastTimeout = "30s"
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheLRU
	}
	if c.Cache.Size == 0 {
		c.Cache.Size = 256
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "15m"
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "wastecast"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}

	if c.Warmer.Schedule == "" {
		c.Warmer.Schedule = "@every 1h"
	}

	for i := range c.SavedReports {
		if c.SavedReports[i].Horizon == 0 {
			c.SavedReports[i].Horizon = f.DefaultHorizon
		}
	}
}

// Validate reports configuration that cannot be used as written
func (c *ConfigData) Validate() error {
	if _, err := c.Server.Timeout(); err != nil {
		return err
	}
	if _, err := c.Cache.TTLDuration(); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case CacheNone, CacheLRU:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache backend redis requires redis-addr")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Forecast.DefaultHorizon > c.Forecast.MaxHorizon {
		return fmt.Errorf("default horizon %d exceeds max horizon %d", c.Forecast.DefaultHorizon, c.Forecast.MaxHorizon)
	}
	seen := make(map[string]bool)
	for _, r := range c.SavedReports {
		if r.Name == "" {
			return fmt.Errorf("saved report without a name")
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate saved report %q", r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

// Timeout parses ForecastTimeout
func (s ServerData) Timeout() (time.Duration, error) {
	if s.ForecastTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.ForecastTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid forecast timeout %q: %w", s.ForecastTimeout, err)
	}
	return d, nil
}

// TTLDuration parses TTL
func (c CacheData) TTLDuration() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid cache ttl %q: %w", c.TTL, err)
	}
	return d, nil
}
