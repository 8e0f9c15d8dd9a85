package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const migrationsTable = "givebox_schema_migrations"

// RunMigrations applies the embedded postgres migrations and returns the
// resulting schema version. An up-to-date schema is not an error.
//
// The migrator is never closed: closing it would close conn, which gorm
// keeps using.
func RunMigrations(conn *sql.DB) (uint, error) {
	if conn == nil {
		return 0, errors.New("migration: nil database handle")
	}

	migrations, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return 0, fmt.Errorf("migration: open embedded files: %w", err)
	}
	source, err := iofs.New(migrations, ".")
	if err != nil {
		return 0, fmt.Errorf("migration: source: %w", err)
	}
	target, err := postgres.WithInstance(conn, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return 0, fmt.Errorf("migration: driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", target)
	if err != nil {
		return 0, fmt.Errorf("migration: init: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migration: up: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("migration: version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("migration: schema version %d is dirty", version)
	}
	return version, nil
}
