package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrator drives schema migrations for the sync database. It wraps
// golang-migrate with logging and treats ErrNoChange as success, so repeated
// deploys of the same schema version are a no-op instead of a failure.
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New creates a Migrator over an open postgres connection
func New(db *sql.DB, migrationsPath string, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration: failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migration: failed to create migrate instance: %w", err)
	}

	return &Migrator{migrate: m, logger: logger}, nil
}

// Up applies all pending migrations
func (m *Migrator) Up() error {
	m.logger.Info("Applying pending migrations")

	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("Schema already up to date")
			return nil
		}
		return fmt.Errorf("migration: up failed: %w", err)
	}

	m.logCurrentVersion("Migrations applied")
	return nil
}

// Down rolls back all migrations
func (m *Migrator) Down() error {
	m.logger.Info("Rolling back all migrations")

	if err := m.migrate.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("Nothing to roll back")
			return nil
		}
		return fmt.Errorf("migration: down failed: %w", err)
	}

	m.logger.Info("All migrations rolled back")
	return nil
}

// Steps applies n migrations, negative n rolls back
func (m *Migrator) Steps(n int) error {
	m.logger.Info("Applying migration steps", zap.Int("steps", n))

	if err := m.migrate.Steps(n); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("Schema already up to date")
			return nil
		}
		return fmt.Errorf("migration: steps failed: %w", err)
	}

	m.logCurrentVersion("Migration steps applied")
	return nil
}

// GoTo migrates the schema to a specific version, in either direction
func (m *Migrator) GoTo(version uint) error {
	m.logger.Info("Migrating to version", zap.Uint("target_version", version))

	if err := m.migrate.Migrate(version); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("Already at target version")
			return nil
		}
		return fmt.Errorf("migration: goto %d failed: %w", version, err)
	}

	m.logger.Info("Migrated to version", zap.Uint("version", version))
	return nil
}

// Version returns the current schema version. A fresh database reports
// version zero, not an error.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("migration: failed to read version: %w", err)
	}
	return version, dirty, nil
}

// Force overwrites the recorded version without running any SQL. Only for
// recovering a dirty state after a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))

	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("migration: failed to force version %d: %w", version, err)
	}
	return nil
}

// Drop destroys every object in the database
func (m *Migrator) Drop() error {
	m.logger.Warn("Dropping all database objects")

	if err := m.migrate.Drop(); err != nil {
		return fmt.Errorf("migration: drop failed: %w", err)
	}
	return nil
}

// Close releases the source and database handles
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("migration: failed to close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("migration: failed to close database: %w", dbErr)
	}
	return nil
}

func (m *Migrator) logCurrentVersion(msg string) {
	version, dirty, err := m.migrate.Version()
	if err != nil {
		return
	}
	m.logger.Info(msg, zap.Uint("version", version), zap.Bool("dirty", dirty))
}
