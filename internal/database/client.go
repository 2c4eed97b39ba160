// Package database stores waste reports in PostgreSQL and aggregates them into monthly series.
package database

import (
	"context"
	"embed"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/wastecast/internal/forecast"
	"github.com/chrissnell/wastecast/internal/log"
	"go.uber.org/zap"
)

// Migrations holds the PostgreSQL schema, applied by wastectl migrate
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the SQL files
const MigrationsDir = "migrations"

// Client holds the connection to the waste report database
type Client struct {
	DB     *gorm.DB // Exported so it can be accessed from other packages
	logger *zap.SugaredLogger
}

// NewClient wraps an open GORM connection
func NewClient(db *gorm.DB, logger *zap.SugaredLogger) *Client {
	return &Client{
		DB:     db,
		logger: logger,
	}
}

// Connect opens a connection with the standard configuration and wraps it
func Connect(connectionString string, logger *zap.SugaredLogger) (*Client, error) {
	db, err := CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}
	return NewClient(db, logger), nil
}

// CreateConnection is a helper function to create a database connection with standard GORM configuration
func CreateConnection(connectionString string) (*gorm.DB, error) {
	log.Info("connecting to PostgreSQL...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		log.Warnf("warning: unable to create a PostgreSQL connection: %v", err)
		return nil, err
	}
	log.Info("PostgreSQL connection successful")

	return db, nil
}

func newGormLogger() logger.Interface {
	return logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// AutoMigrate creates or updates the waste_reports table from the model.
// Production schemas go through wastectl migrate; this serves tests and tooling.
func (c *Client) AutoMigrate() error {
	return c.DB.AutoMigrate(&WasteReport{})
}

// Ping checks that the database is reachable
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateReports inserts reports in batches
func (c *Client) CreateReports(ctx context.Context, reports []WasteReport) error {
	if len(reports) == 0 {
		return nil
	}
	if err := c.DB.WithContext(ctx).CreateInBatches(reports, 500).Error; err != nil {
		return fmt.Errorf("error inserting waste reports: %w", err)
	}
	return nil
}

// MonthlySeries sums report quantities per calendar month for the reports
// matching filter, ordered by month.
func (c *Client) MonthlySeries(ctx context.Context, filter SeriesFilter) ([]forecast.TimeSeriesPoint, error) {
	var totals []MonthlyTotal
	if err := monthlySeriesQuery(c.DB.WithContext(ctx), filter).Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("error querying monthly series: %w", err)
	}

	points := make([]forecast.TimeSeriesPoint, len(totals))
	for i, t := range totals {
		points[i] = forecast.TimeSeriesPoint{
			Period: forecast.PeriodOf(t.Bucket.UTC()),
			Value:  t.Total,
		}
	}

	if c.logger != nil {
		c.logger.Debugw("fetched monthly series", "filter", filter.Key(), "months", len(points))
	}
	return points, nil
}

func monthlySeriesQuery(db *gorm.DB, filter SeriesFilter) *gorm.DB {
	q := db.Model(&WasteReport{}).
		Select("date_trunc('month', report_date) AS bucket, SUM(quantity_kg) AS total")

	if filter.Title != "" {
		q = q.Where("title = ?", filter.Title)
	}
	if filter.Location != "" {
		q = q.Where("location = ?", filter.Location)
	}
	if filter.Author != "" {
		q = q.Where("author = ?", filter.Author)
	}
	if filter.Company != "" {
		q = q.Where("company = ?", filter.Company)
	}
	if filter.From != nil {
		q = q.Where("report_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("report_date <= ?", *filter.To)
	}

	return q.Group("bucket").Order("bucket")
}
