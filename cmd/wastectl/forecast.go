package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chrissnell/wastecast/internal/database"
	"github.com/chrissnell/wastecast/internal/forecast"
	"github.com/chrissnell/wastecast/internal/log"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// forecastCmd runs the engine without the server
func forecastCmd() *cobra.Command {
	var (
		csvFile    string
		horizon    int
		iterations int
		seed       uint64
		mode       string
		band       string
		asJSON     bool
		filter     database.SeriesFilter
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Run a forecast from a CSV file or the waste report database",
		Long: `Runs the forecasting engine offline. With --csv the file holds period,value
rows (period as YYYY-MM). Otherwise the monthly series is read from --db using
the title, location, author and company filters.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := loadSeries(cmd, csvFile, filter)
			if err != nil {
				return err
			}

			opts := forecast.DefaultOptions()
			opts.Horizon = horizon
			opts.Iterations = iterations
			opts.Seed = seed
			if opts.SeasonalMode, err = forecast.ParseSeasonalMode(mode); err != nil {
				return err
			}
			if opts.BandMethod, err = forecast.ParseBandMethod(band); err != nil {
				return err
			}

			res, err := forecast.NewEngine(opts).Run(cmd.Context(), series)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res.Steps)
			}
			return printSteps(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&csvFile, "csv", "", "CSV file of period,value rows")
	cmd.Flags().IntVar(&horizon, "horizon", 12, "Months to forecast")
	cmd.Flags().IntVar(&iterations, "iterations", 1000, "Simulated paths")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Master random seed")
	cmd.Flags().StringVar(&mode, "seasonal-mode", "multiplicative", "Seasonal mode: multiplicative or additive")
	cmd.Flags().StringVar(&band, "band", "percentile", "Band method: percentile or parametric")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the forecast as JSON")
	cmd.Flags().StringVar(&filter.Title, "title", "", "Filter reports by title")
	cmd.Flags().StringVar(&filter.Location, "location", "", "Filter reports by location")
	cmd.Flags().StringVar(&filter.Author, "author", "", "Filter reports by author")
	cmd.Flags().StringVar(&filter.Company, "company", "", "Filter reports by company")

	return cmd
}

func loadSeries(cmd *cobra.Command, csvFile string, filter database.SeriesFilter) ([]forecast.TimeSeriesPoint, error) {
	if csvFile != "" {
		f, err := os.Open(csvFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open CSV file: %w", err)
		}
		defer f.Close()
		return readSeries(f)
	}

	if err := requireDB(); err != nil {
		return nil, fmt.Errorf("either --csv or --db is required")
	}
	client, err := database.Connect(dbDSN, log.GetSugaredLogger())
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return client.MonthlySeries(cmd.Context(), filter)
}

// readSeries parses period,value rows. A header row is skipped when present.
func readSeries(r io.Reader) ([]forecast.TimeSeriesPoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	var points []forecast.TimeSeriesPoint
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		period, err := forecast.ParsePeriod(strings.TrimSpace(record[0]))
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value %q", line, record[1])
		}

		points = append(points, forecast.TimeSeriesPoint{Period: period, Value: value})
	}

	return points, nil
}

func printSteps(w io.Writer, res *forecast.Result) error {
	trend, seasonal := res.Decomposition.Strength()
	fmt.Fprintf(w, "History: %s to %s (%d months, %d imputed)\n",
		res.Series.Start, res.Series.End(), res.Series.Len(), res.Series.ImputedCount())
	fmt.Fprintf(w, "Trend slope: %.3f/month  trend strength: %.2f  seasonal strength: %.2f\n\n",
		res.Decomposition.TrendSlope, trend, seasonal)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "STEP\tPERIOD\tLOWER\tMEAN\tUPPER\t")
	for _, s := range res.Steps {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%.2f\t\n", s.Step+1, s.Period, s.Lower, s.Mean, s.Upper)
	}
	return tw.Flush()
}
