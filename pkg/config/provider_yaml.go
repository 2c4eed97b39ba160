package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

// ParseYAML converts a YAML document into ConfigData with defaults applied
func ParseYAML(data []byte) (*ConfigData, error) {
	var yamlConfig ConfigYAML
	if err := yaml.UnmarshalStrict(data, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Database: DatabaseData{
			ConnectionString: yamlConfig.Database.ConnectionString,
		},
		Forecast: ForecastData{
			DefaultHorizon: yamlConfig.Forecast.DefaultHorizon,
			MaxHorizon:     yamlConfig.Forecast.MaxHorizon,
			Iterations:     yamlConfig.Forecast.Iterations,
			MaxIterations:  yamlConfig.Forecast.MaxIterations,
			Seed:           yamlConfig.Forecast.Seed,
			Workers:        yamlConfig.Forecast.Workers,
			SeasonalMode:   yamlConfig.Forecast.SeasonalMode,
			BandMethod:     yamlConfig.Forecast.BandMethod,
			Confidence:     yamlConfig.Forecast.Confidence,
		},
		Server: ServerData{
			ListenAddr:      yamlConfig.Server.ListenAddr,
			Port:            yamlConfig.Server.Port,
			TLSCert:         yamlConfig.Server.TLSCert,
			TLSKey:          yamlConfig.Server.TLSKey,
			RateLimit:       yamlConfig.Server.RateLimit,
			RateBurst:       yamlConfig.Server.RateBurst,
			ForecastTimeout: yamlConfig.Server.ForecastTimeout,
		},
		Cache: CacheData{
			Backend:       yamlConfig.Cache.Backend,
			Size:          yamlConfig.Cache.Size,
			TTL:           yamlConfig.Cache.TTL,
			RedisAddr:     yamlConfig.Cache.RedisAddr,
			RedisDB:       yamlConfig.Cache.RedisDB,
			RedisPassword: yamlConfig.Cache.RedisPassword,
		},
		Tracing: TracingData{
			Enabled:     yamlConfig.Tracing.Enabled,
			Endpoint:    yamlConfig.Tracing.Endpoint,
			SampleRate:  yamlConfig.Tracing.SampleRate,
			ServiceName: yamlConfig.Tracing.ServiceName,
		},
		Warmer: WarmerData{
			Enabled:  yamlConfig.Warmer.Enabled,
			Schedule: yamlConfig.Warmer.Schedule,
		},
		SavedReports: make([]SavedReportData, len(yamlConfig.SavedReports)),
	}

	for i, r := range yamlConfig.SavedReports {
		config.SavedReports[i] = SavedReportData{
			Name:     r.Name,
			Title:    r.Title,
			Location: r.Location,
			Author:   r.Author,
			Company:  r.Company,
			Horizon:  r.Horizon,
		}
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (y *YAMLProvider) loaded() (*ConfigData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return y.config, nil
}

// GetDatabaseConfig returns database configuration
func (y *YAMLProvider) GetDatabaseConfig() (*DatabaseData, error) {
	config, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &config.Database, nil
}

// GetForecastConfig returns forecast engine configuration
func (y *YAMLProvider) GetForecastConfig() (*ForecastData, error) {
	config, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &config.Forecast, nil
}

// GetServerConfig returns REST server configuration
func (y *YAMLProvider) GetServerConfig() (*ServerData, error) {
	config, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &config.Server, nil
}

// GetSavedReports returns saved report definitions
func (y *YAMLProvider) GetSavedReports() ([]SavedReportData, error) {
	config, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return config.SavedReports, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with the hyphenated key style used in config files
type ConfigYAML struct {
	Database     DatabaseYAML      `yaml:"database"`
	Forecast     ForecastYAML      `yaml:"forecast,omitempty"`
	Server       ServerYAML        `yaml:"server,omitempty"`
	Cache        CacheYAML         `yaml:"cache,omitempty"`
	Tracing      TracingYAML       `yaml:"tracing,omitempty"`
	Warmer       WarmerYAML        `yaml:"warmer,omitempty"`
	SavedReports []SavedReportYAML `yaml:"saved-reports,omitempty"`
}

type DatabaseYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type ForecastYAML struct {
	DefaultHorizon int     `yaml:"default-horizon,omitempty"`
	MaxHorizon     int     `yaml:"max-horizon,omitempty"`
	Iterations     int     `yaml:"iterations,omitempty"`
	MaxIterations  int     `yaml:"max-iterations,omitempty"`
	Seed           *uint64 `yaml:"seed,omitempty"`
	Workers        int     `yaml:"workers,omitempty"`
	SeasonalMode   string  `yaml:"seasonal-mode,omitempty"`
	BandMethod     string  `yaml:"band-method,omitempty"`
	Confidence     float64 `yaml:"confidence,omitempty"`
}

type ServerYAML struct {
	ListenAddr      string  `yaml:"listen-addr,omitempty"`
	Port            int     `yaml:"port,omitempty"`
	TLSCert         string  `yaml:"tls-cert,omitempty"`
	TLSKey          string  `yaml:"tls-key,omitempty"`
	RateLimit       float64 `yaml:"rate-limit,omitempty"`
	RateBurst       int     `yaml:"rate-burst,omitempty"`
	ForecastTimeout string  `yaml:"forecast-timeout,omitempty"`
}

type CacheYAML struct {
	Backend       string `yaml:"backend,omitempty"`
	Size          int    `yaml:"size,omitempty"`
	TTL           string `yaml:"ttl,omitempty"`
	RedisAddr     string `yaml:"redis-addr,omitempty"`
	RedisDB       int    `yaml:"redis-db,omitempty"`
	RedisPassword string `yaml:"redis-password,omitempty"`
}

type TracingYAML struct {
	Enabled     bool    `yaml:"enabled,omitempty"`
	Endpoint    string  `yaml:"endpoint,omitempty"`
	SampleRate  float64 `yaml:"sample-rate,omitempty"`
	ServiceName string  `yaml:"service-name,omitempty"`
}

type WarmerYAML struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	Schedule string `yaml:"schedule,omitempty"`
}

type SavedReportYAML struct {
	Name     string `yaml:"name"`
	Title    string `yaml:"title,omitempty"`
	Location string `yaml:"location,omitempty"`
	Author   string `yaml:"author,omitempty"`
	Company  string `yaml:"company,omitempty"`
	Horizon  int    `yaml:"horizon,omitempty"`
}
