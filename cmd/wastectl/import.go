package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/wastecast/internal/database"
	"github.com/chrissnell/wastecast/internal/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var reportColumns = []string{"title", "location", "author", "company", "report_date", "quantity_kg"}

// importCmd bulk-loads waste reports from CSV
func importCmd() *cobra.Command {
	var (
		csvFile   string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk-load waste reports from a CSV file",
		Long: `Loads rows of title,location,author,company,report_date,quantity_kg into
waste_reports using PostgreSQL COPY. A header row is skipped when present.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDB(); err != nil {
				return err
			}

			f, err := os.Open(csvFile)
			if err != nil {
				return fmt.Errorf("failed to open CSV file: %w", err)
			}
			defer f.Close()

			reports, err := readReports(f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, dbDSN)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer pool.Close()

			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("failed to ping database: %w", err)
			}

			n, err := copyReports(ctx, pool, reports, batchSize)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d waste reports\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&csvFile, "csv", "", "CSV file to import (required)")
	cmd.Flags().IntVar(&batchSize, "batch", 5000, "Rows per COPY batch")
	cmd.MarkFlagRequired("csv")

	return cmd
}

// readReports parses CSV rows of title,location,author,company,report_date,quantity_kg
func readReports(r io.Reader) ([]database.WasteReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(reportColumns)
	reader.TrimLeadingSpace = true

	var reports []database.WasteReport
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		if line == 1 && isHeader(record) {
			continue
		}

		date, err := parseReportDate(record[4])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid report_date %q", line, record[4])
		}
		qty, err := strconv.ParseFloat(strings.TrimSpace(record[5]), 64)
		if err != nil || qty < 0 {
			return nil, fmt.Errorf("line %d: invalid quantity_kg %q", line, record[5])
		}
		if strings.TrimSpace(record[0]) == "" {
			return nil, fmt.Errorf("line %d: title is required", line)
		}

		reports = append(reports, database.WasteReport{
			Title:      strings.TrimSpace(record[0]),
			Location:   strings.TrimSpace(record[1]),
			Author:     strings.TrimSpace(record[2]),
			Company:    strings.TrimSpace(record[3]),
			ReportDate: date,
			QuantityKg: qty,
		})
	}

	return reports, nil
}

func isHeader(record []string) bool {
	return strings.EqualFold(strings.TrimSpace(record[len(record)-1]), "quantity_kg")
}

// parseReportDate accepts a calendar date or an RFC 3339 timestamp
func parseReportDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	formats := []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}
	for _, format := range formats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// copyReports streams reports into waste_reports in batches
func copyReports(ctx context.Context, pool *pgxpool.Pool, reports []database.WasteReport, batchSize int) (int64, error) {
	if batchSize < 1 {
		batchSize = len(reports)
	}

	var total int64
	for start := 0; start < len(reports); start += batchSize {
		end := min(start+batchSize, len(reports))

		rows := make([][]any, 0, end-start)
		for _, r := range reports[start:end] {
			rows = append(rows, []any{r.Title, r.Location, r.Author, r.Company, r.ReportDate, r.QuantityKg})
		}

		n, err := pool.CopyFrom(ctx, pgx.Identifier{"waste_reports"}, reportColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return total, fmt.Errorf("COPY failed after %d rows: %w", total, err)
		}
		total += n
		log.Debugf("copied batch of %d rows (%d total)", n, total)
	}

	return total, nil
}
