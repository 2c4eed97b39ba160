package main

import (
	"fmt"
	"os"

	"github.com/chrissnell/wastecast/pkg/config"
	"github.com/spf13/cobra"
)

// configCmd groups configuration utilities
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	cmd.AddCommand(configConvertCmd())
	cmd.AddCommand(configCheckCmd())
	cmd.AddCommand(savedReportCmd())
	return cmd
}

// configConvertCmd copies a YAML configuration into a new SQLite database
func configConvertCmd() *cobra.Command {
	var (
		yamlFile   string
		sqliteFile string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a YAML configuration file to a SQLite configuration database",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if _, err := os.Stat(sqliteFile); err == nil && !force {
				return fmt.Errorf("SQLite file already exists: %s (use --force to overwrite)", sqliteFile)
			}

			configData, err := config.NewYAMLProvider(yamlFile).LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading YAML configuration: %w", err)
			}
			fmt.Fprintf(out, "Loaded %s with %d saved reports\n", yamlFile, len(configData.SavedReports))

			if force {
				if err := os.Remove(sqliteFile); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("error removing existing SQLite file: %w", err)
				}
			}

			provider, err := config.NewSQLiteProvider(sqliteFile)
			if err != nil {
				return fmt.Errorf("error creating SQLite database: %w", err)
			}
			defer provider.Close()

			if err := provider.SaveConfig(configData); err != nil {
				return fmt.Errorf("error loading configuration into SQLite: %w", err)
			}

			fmt.Fprintf(out, "Conversion completed successfully!\n")
			fmt.Fprintf(out, "You can now use the SQLite backend with: -config-backend sqlite -config %s\n", sqliteFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&yamlFile, "yaml", "", "Path to YAML configuration file (required)")
	cmd.Flags().StringVar(&sqliteFile, "sqlite", "", "Path to SQLite database file (required)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing SQLite database")
	cmd.MarkFlagRequired("yaml")
	cmd.MarkFlagRequired("sqlite")

	return cmd
}

// configCheckCmd loads and validates a configuration source
func configCheckCmd() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var provider config.ConfigProvider
			switch backend {
			case "yaml":
				provider = config.NewYAMLProvider(args[0])
			case "sqlite":
				p, err := config.NewSQLiteProvider(args[0])
				if err != nil {
					return err
				}
				provider = p
			default:
				return fmt.Errorf("unsupported configuration backend: %s", backend)
			}
			defer provider.Close()

			cfg, err := provider.LoadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK\n")
			fmt.Fprintf(out, "  Listen:        %s:%d\n", cfg.Server.ListenAddr, cfg.Server.Port)
			fmt.Fprintf(out, "  Horizon:       %d (max %d)\n", cfg.Forecast.DefaultHorizon, cfg.Forecast.MaxHorizon)
			fmt.Fprintf(out, "  Iterations:    %d (max %d)\n", cfg.Forecast.Iterations, cfg.Forecast.MaxIterations)
			fmt.Fprintf(out, "  Cache:         %s\n", cfg.Cache.Backend)
			fmt.Fprintf(out, "  Warmer:        %v (%s)\n", cfg.Warmer.Enabled, cfg.Warmer.Schedule)
			fmt.Fprintf(out, "  Saved reports: %d\n", len(cfg.SavedReports))
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "yaml", "Configuration backend: yaml or sqlite")
	return cmd
}

// savedReportCmd edits the saved reports of a SQLite configuration database
func savedReportCmd() *cobra.Command {
	var (
		sqliteFile string
		report     config.SavedReportData
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Add, update or delete saved reports in a SQLite configuration",
	}
	cmd.PersistentFlags().StringVar(&sqliteFile, "sqlite", "", "Path to SQLite configuration database (required)")
	cmd.MarkPersistentFlagRequired("sqlite")

	setCmd := &cobra.Command{
		Use:   "set NAME",
		Short: "Create or replace a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := config.NewSQLiteProvider(sqliteFile)
			if err != nil {
				return err
			}
			defer provider.Close()

			report.Name = args[0]
			if err := provider.SaveSavedReport(&report); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved report %q\n", report.Name)
			return nil
		},
	}
	setCmd.Flags().StringVar(&report.Title, "title", "", "Filter reports by title")
	setCmd.Flags().StringVar(&report.Location, "location", "", "Filter reports by location")
	setCmd.Flags().StringVar(&report.Author, "author", "", "Filter reports by author")
	setCmd.Flags().StringVar(&report.Company, "company", "", "Filter reports by company")
	setCmd.Flags().IntVar(&report.Horizon, "horizon", 0, "Months to forecast (0 = configured default)")

	deleteCmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := config.NewSQLiteProvider(sqliteFile)
			if err != nil {
				return err
			}
			defer provider.Close()

			if err := provider.DeleteSavedReport(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted report %q\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(setCmd, deleteCmd)
	return cmd
}
