package main

import (
	"database/sql"
	"fmt"

	"github.com/chrissnell/wastecast/internal/database"
	"github.com/chrissnell/wastecast/internal/log"
	"github.com/chrissnell/wastecast/pkg/migrate"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/spf13/cobra"
)

const migrationTable = "schema_migrations"

// migrateCmd applies the embedded waste report schema
func migrateCmd() *cobra.Command {
	var (
		target int
		status bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the waste report schema migrations",
		Long: `Applies the PostgreSQL migrations embedded in wastecast.
Without --to the schema is brought to the latest version. A lower --to rolls back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDB(); err != nil {
				return err
			}

			db, err := sql.Open("postgres", dbDSN)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			if err := db.PingContext(cmd.Context()); err != nil {
				return fmt.Errorf("failed to ping database: %w", err)
			}

			provider := migrate.NewFSProvider(database.Migrations, database.MigrationsDir, migrationTable, migrate.DriverPostgres)
			migrator := migrate.NewMigrator(db, provider, log.GetSugaredLogger())

			if status {
				return printMigrationStatus(cmd, migrator)
			}

			if err := migrator.MigrateTo(target); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			version, err := migrator.GetCurrentVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema is at version %d\n", version)
			return nil
		},
	}

	cmd.Flags().IntVar(&target, "to", -1, "Target schema version (-1 = latest)")
	cmd.Flags().BoolVar(&status, "status", false, "Show the current version and pending migrations")

	return cmd
}

func printMigrationStatus(cmd *cobra.Command, migrator *migrate.Migrator) error {
	version, err := migrator.GetCurrentVersion()
	if err != nil {
		return err
	}
	pending, err := migrator.GetPendingMigrations()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Current version: %d\n", version)
	if len(pending) == 0 {
		fmt.Fprintln(out, "No pending migrations")
		return nil
	}
	fmt.Fprintf(out, "Pending migrations:\n")
	for _, m := range pending {
		fmt.Fprintf(out, "  %03d %s\n", m.Version, m.Name)
	}
	return nil
}
