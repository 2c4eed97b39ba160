package migrate

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Driver names accepted by FSProvider
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Format: 001_migration_name.up.sql or 001_migration_name.down.sql
var migrationFileRegex = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FSProvider loads migrations from a directory of an fs.FS, typically an embed.FS
type FSProvider struct {
	fsys           fs.FS
	dir            string
	migrationTable string
	dbDriver       string
}

// NewFSProvider creates a migration provider reading dir inside fsys
func NewFSProvider(fsys fs.FS, dir, migrationTable, dbDriver string) *FSProvider {
	if migrationTable == "" {
		migrationTable = "schema_migrations"
	}
	if dbDriver == "" {
		dbDriver = DriverSQLite
	}
	return &FSProvider{
		fsys:           fsys,
		dir:            dir,
		migrationTable: migrationTable,
		dbDriver:       dbDriver,
	}
}

// NewDirProvider creates a migration provider reading a directory on disk
func NewDirProvider(dir, migrationTable, dbDriver string) *FSProvider {
	return NewFSProvider(os.DirFS(dir), ".", migrationTable, dbDriver)
}

// GetMigrations loads all migrations from the directory
func (fp *FSProvider) GetMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(fp.fsys, fp.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory %s: %w", fp.dir, err)
	}

	migrationFiles := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := migrationFileRegex.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("invalid version number in file %s: %w", entry.Name(), err)
		}

		content, err := fs.ReadFile(fp.fsys, joinPath(fp.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		migration := migrationFiles[version]
		if migration == nil {
			migration = &Migration{
				Version: version,
				Name:    strings.ReplaceAll(matches[2], "_", " "),
			}
			migrationFiles[version] = migration
		}

		if matches[3] == "up" {
			migration.Up = string(content)
		} else {
			migration.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(migrationFiles))
	for _, migration := range migrationFiles {
		migrations = append(migrations, *migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func joinPath(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}

// CreateMigrationTable creates the migration tracking table
func (fp *FSProvider) CreateMigrationTable(db *sql.DB) error {
	timestampType := "DATETIME"
	if fp.dbDriver == DriverPostgres {
		timestampType = "TIMESTAMP"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at %s DEFAULT CURRENT_TIMESTAMP
		)
	`, fp.migrationTable, timestampType)

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	return nil
}

// GetCurrentVersion returns the highest applied migration version
func (fp *FSProvider) GetCurrentVersion(db *sql.DB) (int, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", fp.migrationTable)

	var version int
	if err := db.QueryRow(query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}

	return version, nil
}

// SetVersion records version as the current one, forgetting any newer versions
func (fp *FSProvider) SetVersion(db DB, version int) error {
	placeholder := "?"
	if fp.dbDriver == DriverPostgres {
		placeholder = "$1"
	}

	deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE version > %s", fp.migrationTable, placeholder)
	if _, err := db.Exec(deleteQuery, version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}

	if version == 0 {
		return nil
	}

	var query string
	if fp.dbDriver == DriverPostgres {
		query = fmt.Sprintf(`
			INSERT INTO %s (version, applied_at)
			VALUES ($1, CURRENT_TIMESTAMP)
			ON CONFLICT (version) DO UPDATE SET applied_at = CURRENT_TIMESTAMP
		`, fp.migrationTable)
	} else {
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (version, applied_at)
			VALUES (?, CURRENT_TIMESTAMP)
		`, fp.migrationTable)
	}

	if _, err := db.Exec(query, version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}

	return nil
}
