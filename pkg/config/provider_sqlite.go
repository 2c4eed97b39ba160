package config

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/chrissnell/wastecast/pkg/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var sqliteMigrations embed.FS

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens the database and brings its schema up to date
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite allows a single writer; an in-memory database also lives per connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	provider := migrate.NewFSProvider(sqliteMigrations, "migrations", "config_schema_migrations", migrate.DriverSQLite)
	if err := migrate.NewMigrator(db, provider, nil).MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate config schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	database, err := s.GetDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}
	config.Database = *database

	forecast, err := s.GetForecastConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load forecast config: %w", err)
	}
	config.Forecast = *forecast

	server, err := s.GetServerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	config.Server = *server

	if config.Cache, err = s.getCacheConfig(); err != nil {
		return nil, fmt.Errorf("failed to load cache config: %w", err)
	}
	if config.Tracing, err = s.getTracingConfig(); err != nil {
		return nil, fmt.Errorf("failed to load tracing config: %w", err)
	}
	if config.Warmer, err = s.getWarmerConfig(); err != nil {
		return nil, fmt.Errorf("failed to load warmer config: %w", err)
	}

	reports, err := s.GetSavedReports()
	if err != nil {
		return nil, fmt.Errorf("failed to load saved reports: %w", err)
	}
	config.SavedReports = reports

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// GetDatabaseConfig returns the database section. A missing row yields zero values.
func (s *SQLiteProvider) GetDatabaseConfig() (*DatabaseData, error) {
	var connectionString sql.NullString
	err := s.db.QueryRow(`SELECT connection_string FROM database_config WHERE id = 1`).Scan(&connectionString)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query database config: %w", err)
	}
	return &DatabaseData{ConnectionString: connectionString.String}, nil
}

// GetForecastConfig returns the forecast section
func (s *SQLiteProvider) GetForecastConfig() (*ForecastData, error) {
	var defaultHorizon, maxHorizon, iterations, maxIterations, seed, workers sql.NullInt64
	var seasonalMode, bandMethod sql.NullString
	var confidence sql.NullFloat64

	err := s.db.QueryRow(`
		SELECT default_horizon, max_horizon, iterations, max_iterations,
		       seed, workers, seasonal_mode, band_method, confidence
		FROM forecast_config WHERE id = 1
	`).Scan(&defaultHorizon, &maxHorizon, &iterations, &maxIterations,
		&seed, &workers, &seasonalMode, &bandMethod, &confidence)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query forecast config: %w", err)
	}

	var forecastSeed *uint64
	if seed.Valid {
		v := uint64(seed.Int64)
		forecastSeed = &v
	}

	return &ForecastData{
		DefaultHorizon: int(defaultHorizon.Int64),
		MaxHorizon:     int(maxHorizon.Int64),
		Iterations:     int(iterations.Int64),
		MaxIterations:  int(maxIterations.Int64),
		Seed:           forecastSeed,
		Workers:        int(workers.Int64),
		SeasonalMode:   seasonalMode.String,
		BandMethod:     bandMethod.String,
		Confidence:     confidence.Float64,
	}, nil
}

// GetServerConfig returns the server section
func (s *SQLiteProvider) GetServerConfig() (*ServerData, error) {
	var listenAddr, tlsCert, tlsKey, timeout sql.NullString
	var port, burst sql.NullInt64
	var rateLimit sql.NullFloat64

	err := s.db.QueryRow(`
		SELECT listen_addr, port, tls_cert, tls_key, rate_limit, rate_burst, forecast_timeout
		FROM server_config WHERE id = 1
	`).Scan(&listenAddr, &port, &tlsCert, &tlsKey, &rateLimit, &burst, &timeout)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query server config: %w", err)
	}

	return &ServerData{
		ListenAddr:      listenAddr.String,
		Port:            int(port.Int64),
		TLSCert:         tlsCert.String,
		TLSKey:          tlsKey.String,
		RateLimit:       rateLimit.Float64,
		RateBurst:       int(burst.Int64),
		ForecastTimeout: timeout.String,
	}, nil
}

func (s *SQLiteProvider) getCacheConfig() (CacheData, error) {
	var backend, ttl, redisAddr, redisPassword sql.NullString
	var size, redisDB sql.NullInt64

	err := s.db.QueryRow(`
		SELECT backend, size, ttl, redis_addr, redis_db, redis_password
		FROM cache_config WHERE id = 1
	`).Scan(&backend, &size, &ttl, &redisAddr, &redisDB, &redisPassword)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return CacheData{}, err
	}

	return CacheData{
		Backend:       backend.String,
		Size:          int(size.Int64),
		TTL:           ttl.String,
		RedisAddr:     redisAddr.String,
		RedisDB:       int(redisDB.Int64),
		RedisPassword: redisPassword.String,
	}, nil
}

func (s *SQLiteProvider) getTracingConfig() (TracingData, error) {
	var enabled sql.NullBool
	var endpoint, serviceName sql.NullString
	var sampleRate sql.NullFloat64

	err := s.db.QueryRow(`
		SELECT enabled, endpoint, sample_rate, service_name
		FROM tracing_config WHERE id = 1
	`).Scan(&enabled, &endpoint, &sampleRate, &serviceName)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return TracingData{}, err
	}

	return TracingData{
		Enabled:     enabled.Bool,
		Endpoint:    endpoint.String,
		SampleRate:  sampleRate.Float64,
		ServiceName: serviceName.String,
	}, nil
}

func (s *SQLiteProvider) getWarmerConfig() (WarmerData, error) {
	var enabled sql.NullBool
	var schedule sql.NullString

	err := s.db.QueryRow(`SELECT enabled, schedule FROM warmer_config WHERE id = 1`).Scan(&enabled, &schedule)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return WarmerData{}, err
	}

	return WarmerData{Enabled: enabled.Bool, Schedule: schedule.String}, nil
}

// GetSavedReports returns saved reports ordered by name
func (s *SQLiteProvider) GetSavedReports() ([]SavedReportData, error) {
	rows, err := s.db.Query(`
		SELECT name, title, location, author, company, horizon
		FROM saved_reports
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query saved reports: %w", err)
	}
	defer rows.Close()

	var reports []SavedReportData
	for rows.Next() {
		var report SavedReportData
		var title, location, author, company sql.NullString

		if err := rows.Scan(&report.Name, &title, &location, &author, &company, &report.Horizon); err != nil {
			return nil, fmt.Errorf("failed to scan saved report row: %w", err)
		}

		report.Title = title.String
		report.Location = location.String
		report.Author = author.String
		report.Company = company.String

		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// IsReadOnly returns false since SQLite supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	statements := []struct {
		query string
		args  []interface{}
	}{
		{
			`INSERT OR REPLACE INTO database_config (id, connection_string) VALUES (1, ?)`,
			[]interface{}{nullString(configData.Database.ConnectionString)},
		},
		{
			`INSERT OR REPLACE INTO forecast_config
			 (id, default_horizon, max_horizon, iterations, max_iterations, seed, workers, seasonal_mode, band_method, confidence)
			 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			[]interface{}{
				configData.Forecast.DefaultHorizon, configData.Forecast.MaxHorizon,
				configData.Forecast.Iterations, configData.Forecast.MaxIterations,
				nullSeed(configData.Forecast.Seed), configData.Forecast.Workers,
				nullString(configData.Forecast.SeasonalMode), nullString(configData.Forecast.BandMethod),
				configData.Forecast.Confidence,
			},
		},
		{
			`INSERT OR REPLACE INTO server_config
			 (id, listen_addr, port, tls_cert, tls_key, rate_limit, rate_burst, forecast_timeout)
			 VALUES (1, ?, ?, ?, ?, ?, ?, ?)`,
			[]interface{}{
				nullString(configData.Server.ListenAddr), configData.Server.Port,
				nullString(configData.Server.TLSCert), nullString(configData.Server.TLSKey),
				configData.Server.RateLimit, configData.Server.RateBurst,
				nullString(configData.Server.ForecastTimeout),
			},
		},
		{
			`INSERT OR REPLACE INTO cache_config (id, backend, size, ttl, redis_addr, redis_db, redis_password)
			 VALUES (1, ?, ?, ?, ?, ?, ?)`,
			[]interface{}{
				nullString(configData.Cache.Backend), configData.Cache.Size, nullString(configData.Cache.TTL),
				nullString(configData.Cache.RedisAddr), configData.Cache.RedisDB, nullString(configData.Cache.RedisPassword),
			},
		},
		{
			`INSERT OR REPLACE INTO tracing_config (id, enabled, endpoint, sample_rate, service_name)
			 VALUES (1, ?, ?, ?, ?)`,
			[]interface{}{
				configData.Tracing.Enabled, nullString(configData.Tracing.Endpoint),
				configData.Tracing.SampleRate, nullString(configData.Tracing.ServiceName),
			},
		},
		{
			`INSERT OR REPLACE INTO warmer_config (id, enabled, schedule) VALUES (1, ?, ?)`,
			[]interface{}{configData.Warmer.Enabled, nullString(configData.Warmer.Schedule)},
		},
		{`DELETE FROM saved_reports`, nil},
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt.query, stmt.args...); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}

	for i := range configData.SavedReports {
		if err := upsertSavedReport(tx, &configData.SavedReports[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveSavedReport inserts or updates a saved report by name
func (s *SQLiteProvider) SaveSavedReport(report *SavedReportData) error {
	if report.Name == "" {
		return fmt.Errorf("saved report name is required")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertSavedReport(tx, report); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteSavedReport removes a saved report by name
func (s *SQLiteProvider) DeleteSavedReport(name string) error {
	result, err := s.db.Exec(`DELETE FROM saved_reports WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete saved report: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("saved report %q not found", name)
	}
	return nil
}

func upsertSavedReport(tx *sql.Tx, report *SavedReportData) error {
	_, err := tx.Exec(`
		INSERT INTO saved_reports (name, title, location, author, company, horizon)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			title = excluded.title,
			location = excluded.location,
			author = excluded.author,
			company = excluded.company,
			horizon = excluded.horizon,
			updated_at = CURRENT_TIMESTAMP
	`, report.Name, nullString(report.Title), nullString(report.Location),
		nullString(report.Author), nullString(report.Company), report.Horizon)
	if err != nil {
		return fmt.Errorf("failed to save report %q: %w", report.Name, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullSeed(seed *uint64) sql.NullInt64 {
	if seed == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*seed), Valid: true}
}
