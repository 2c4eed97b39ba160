// Package warmer provides a controller that recomputes saved reports on a
// cron schedule so that the first request for them is served from cache.
package warmer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/wastecast/internal/database"
	"github.com/chrissnell/wastecast/internal/metrics"
	"github.com/chrissnell/wastecast/internal/report"
	"github.com/chrissnell/wastecast/pkg/config"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher recomputes a report and stores it in the forecast cache
type Refresher interface {
	Refresh(ctx context.Context, req report.Request) (*report.Envelope, error)
}

// Controller manages the warmer lifecycle
type Controller struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	refresher      Refresher
	metrics        *metrics.Metrics
	logger         *zap.SugaredLogger
	schedule       cron.Schedule
	cron           *cron.Cron
	running        sync.Mutex
}

// parser accepts five-field specs and descriptors such as @hourly or @every 30m
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewController creates a new warmer controller.
// Returns nil if the warmer is not enabled in the configuration.
func NewController(
	ctx context.Context,
	wg *sync.WaitGroup,
	configProvider config.ConfigProvider,
	wd config.WarmerData,
	refresher Refresher,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
) (*Controller, error) {
	if !wd.Enabled {
		logger.Debug("forecast warmer disabled")
		return nil, nil
	}

	schedule, err := parser.Parse(wd.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid warmer schedule %q: %w", wd.Schedule, err)
	}

	return &Controller{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		refresher:      refresher,
		metrics:        m,
		logger:         logger,
		schedule:       schedule,
	}, nil
}

// Start warms every saved report once and then on each scheduled tick until
// the context is cancelled.
func (c *Controller) Start() error {
	c.cron = cron.New(cron.WithParser(parser), cron.WithLogger(cronLogger{c.logger}))
	c.cron.Schedule(c.schedule, cron.FuncJob(func() { c.RunOnce(c.ctx) }))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.logger.Info("Running initial forecast warm-up...")
		c.RunOnce(c.ctx)

		c.cron.Start()
		<-c.ctx.Done()
		c.logger.Info("Stopping forecast warmer...")
		<-c.cron.Stop().Done()
	}()

	return nil
}

// RunOnce recomputes every saved report. Saved reports are re-read from the
// config provider on each run so that edits take effect without a restart.
// Runs never overlap.
func (c *Controller) RunOnce(ctx context.Context) (warmed, failed int) {
	c.running.Lock()
	defer c.running.Unlock()

	reports, err := c.configProvider.GetSavedReports()
	if err != nil {
		c.logger.Errorf("failed to load saved reports: %v", err)
		c.metrics.WarmerRuns.WithLabelValues("error").Inc()
		return 0, 0
	}

	for _, sr := range reports {
		if ctx.Err() != nil {
			c.logger.Info("forecast warm-up interrupted")
			break
		}

		started := time.Now()
		env, err := c.refresher.Refresh(ctx, requestFor(sr))
		if err != nil {
			failed++
			c.metrics.WarmerRuns.WithLabelValues(report.Outcome(err)).Inc()
			c.logger.Warnw("failed to warm saved report", "report", sr.Name, "error", err)
			continue
		}

		warmed++
		c.metrics.WarmerRuns.WithLabelValues("ok").Inc()
		c.logger.Debugw("warmed saved report",
			"report", sr.Name,
			"horizon", env.Horizon,
			"duration", time.Since(started))
	}

	c.metrics.WarmerLastRunTS.SetToCurrentTime()
	c.logger.Infof("forecast warm-up complete: %d warmed, %d failed", warmed, failed)
	return warmed, failed
}

// requestFor converts a saved report into a service request
func requestFor(sr config.SavedReportData) report.Request {
	return report.Request{
		Filter: database.SeriesFilter{
			Title:    sr.Title,
			Location: sr.Location,
			Author:   sr.Author,
			Company:  sr.Company,
		},
		Horizon: sr.Horizon,
	}
}

// cronLogger adapts zap to the cron.Logger interface
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
