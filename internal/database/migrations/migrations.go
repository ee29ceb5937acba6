package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// MigrateUp runs all pending migrations to bring the database to the latest
// schema version. A database already at the latest version is left untouched.
func MigrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	// m is deliberately not closed: closing it would close the db connection,
	// which the caller owns.

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// CheckStatus verifies that the database schema is up-to-date.
// Returns nil when the database is at the latest version.
func CheckStatus(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("database has no schema version (needs migration)")
		}
		return fmt.Errorf("getting database version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in dirty state at version %d (a migration failed previously)", version)
	}

	sourceDriver, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return fmt.Errorf("reading migration files: %w", err)
	}
	defer sourceDriver.Close()

	latest, err := latestVersion(sourceDriver)
	if err != nil {
		return fmt.Errorf("determining latest version: %w", err)
	}

	switch {
	case version < latest:
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)",
			version, latest, latest-version)
	case version > latest:
		return fmt.Errorf("database version %d is ahead of binary version %d (binary needs update)",
			version, latest)
	}
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("creating source driver: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("creating database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return m, nil
}

// latestVersion returns the highest version number available in the source.
func latestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(version)
		if err != nil {
			// Next errors when there are no more migrations.
			return version, nil
		}
		version = next
	}
}
