package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/sqlite/*.sql files/postgres/*.sql
var migrationFiles embed.FS

// Dialect selects the migration driver and the set of migration files.
type Dialect string

const (
	// SQLite3 is SQLite through the cgo driver (mattn/go-sqlite3).
	SQLite3 Dialect = "sqlite3"
	// SQLite is SQLite through the pure Go driver (modernc.org/sqlite).
	SQLite Dialect = "sqlite"
	// Postgres is PostgreSQL through pgx.
	Postgres Dialect = "pgx5"
)

// dir returns the embedded directory holding the dialect's migrations.
func (d Dialect) dir() string {
	if d == Postgres {
		return "files/postgres"
	}
	return "files/sqlite"
}

// CheckDBMigrationStatus verifies that the database schema is up-to-date.
// Returns nil if the database is at the latest version.
// Returns an error describing any version mismatch or migration issues.
func CheckDBMigrationStatus(db *sql.DB, dialect Dialect) error {
	m, err := newMigrate(db, dialect)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: We don't close m here because it would close the db connection
	// The caller owns the db and is responsible for closing it
	// (Postgres is the exception, see closeIfBorrowed)
	defer closeIfBorrowed(m, dialect)

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("database has no schema version (needs migration)")
		}
		return fmt.Errorf("failed to get database version: %w", err)
	}

	if dirty {
		return fmt.Errorf("database is in dirty state at version %d (migration failed previously)", version)
	}

	sourceDriver, err := iofs.New(migrationFiles, dialect.dir())
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	defer sourceDriver.Close()

	latestVersion, err := getLatestVersion(sourceDriver)
	if err != nil {
		return fmt.Errorf("failed to determine latest version: %w", err)
	}

	if version < latestVersion {
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)",
			version, latestVersion, latestVersion-version)
	}

	if version > latestVersion {
		return fmt.Errorf("database version %d is ahead of binary version %d (binary needs update)",
			version, latestVersion)
	}

	return nil
}

// MigrateUp runs all pending migrations to bring database to latest version.
func MigrateUp(db *sql.DB, dialect Dialect) error {
	m, err := newMigrate(db, dialect)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: We don't close m here because it would close the db connection
	// The caller owns the db and is responsible for closing it
	// (Postgres is the exception, see closeIfBorrowed)
	defer closeIfBorrowed(m, dialect)

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// closeIfBorrowed closes m for Postgres. There the *sql.DB is opened per
// call on top of a pgx pool, and the migrate instance holds one of its
// connections until closed.
func closeIfBorrowed(m *migrate.Migrate, dialect Dialect) {
	if dialect == Postgres {
		m.Close()
	}
}

// newMigrate creates a new migrate instance for the given database.
func newMigrate(db *sql.DB, dialect Dialect) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationFiles, dialect.dir())
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	dbDriver, err := databaseDriver(db, dialect)
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, string(dialect), dbDriver)
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return m, nil
}

// databaseDriver wraps db with the dialect-specific migration logic.
func databaseDriver(db *sql.DB, dialect Dialect) (database.Driver, error) {
	switch dialect {
	case SQLite3:
		return sqlite3.WithInstance(db, &sqlite3.Config{})
	case SQLite:
		return sqlite.WithInstance(db, &sqlite.Config{})
	case Postgres:
		return pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	default:
		return nil, fmt.Errorf("unknown migration dialect: %q", dialect)
	}
}

// getLatestVersion returns the highest version number available in the source.
func getLatestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}

	// Any error from Next() means there are no more migrations.
	latestVersion := version
	for {
		nextVersion, err := src.Next(latestVersion)
		if err != nil {
			break
		}
		latestVersion = nextVersion
	}

	return latestVersion, nil
}
