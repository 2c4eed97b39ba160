// Command wastectl is the operator tool for wastecast: schema migrations,
// bulk imports, offline forecasts and config conversion.
package main

import (
	"fmt"
	"os"

	"github.com/chrissnell/wastecast/internal/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	dbDSN   string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wastectl",
		Short: "Operator tool for the wastecast forecasting service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.Init(verbose)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbDSN, "db", os.Getenv("WASTECAST_DB"), "PostgreSQL connection string (default $WASTECAST_DB)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(forecastCmd())
	rootCmd.AddCommand(configCmd())

	err := rootCmd.Execute()
	log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func requireDB() error {
	if dbDSN == "" {
		return fmt.Errorf("--db is required")
	}
	return nil
}
