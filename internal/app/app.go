// Package app wires the configured components together and runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/wastecast/internal/controllers/restserver"
	"github.com/chrissnell/wastecast/internal/controllers/warmer"
	"github.com/chrissnell/wastecast/internal/database"
	"github.com/chrissnell/wastecast/internal/forecastcache"
	"github.com/chrissnell/wastecast/internal/log"
	"github.com/chrissnell/wastecast/internal/metrics"
	"github.com/chrissnell/wastecast/internal/report"
	"github.com/chrissnell/wastecast/internal/tracing"
	"github.com/chrissnell/wastecast/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
	version        string
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger, version string) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
		version:        version,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if cfg.Database.ConnectionString == "" {
		return fmt.Errorf("database connection string is required")
	}

	m := metrics.New()

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Init(ctx, tracing.Config{
			ServiceName:       cfg.Tracing.ServiceName,
			ServiceVersion:    a.version,
			CollectorEndpoint: cfg.Tracing.Endpoint,
			SamplingRate:      cfg.Tracing.SampleRate,
		})
		if err != nil {
			return fmt.Errorf("error initializing tracing: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				a.logger.Warnf("error flushing traces: %v", err)
			}
		}()
		a.logger.Infof("tracing enabled, exporting to %s", cfg.Tracing.Endpoint)
	}

	db, err := database.Connect(cfg.Database.ConnectionString, a.logger)
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}
	defer db.Close()

	cache, err := buildCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer cache.Close()
	a.logger.Infof("forecast cache backend: %s", cache.Backend())

	opts, err := report.OptionsFromConfig(cfg.Forecast)
	if err != nil {
		return fmt.Errorf("invalid forecast configuration: %w", err)
	}
	timeout, err := cfg.Server.Timeout()
	if err != nil {
		return err
	}
	service := report.NewService(db, cache, m, a.logger, opts, timeout)

	rest, err := restserver.NewController(ctx, &wg, cfg.Server, service, db, m, a.logger)
	if err != nil {
		return err
	}
	if err := rest.StartController(); err != nil {
		return err
	}

	w, err := warmer.NewController(ctx, &wg, a.configProvider, cfg.Warmer, service, m, a.logger)
	if err != nil {
		return err
	}
	if w != nil {
		if err := w.Start(); err != nil {
			return err
		}
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}

// buildCache creates the configured forecast cache backend
func buildCache(ctx context.Context, cc config.CacheData) (forecastcache.Cache, error) {
	ttl, err := cc.TTLDuration()
	if err != nil {
		return nil, err
	}

	switch cc.Backend {
	case config.CacheNone, "":
		return forecastcache.Nop{}, nil
	case config.CacheLRU:
		return forecastcache.NewLRU(cc.Size, ttl), nil
	case config.CacheRedis:
		return forecastcache.NewRedis(ctx, forecastcache.RedisOptions{
			Addr:     cc.RedisAddr,
			Password: cc.RedisPassword,
			DB:       cc.RedisDB,
			TTL:      ttl,
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cc.Backend)
	}
}
