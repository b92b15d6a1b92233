package persistence

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bricksync/backend/internal/infrastructure/config"
)

// Database wraps the GORM connection shared by all repositories
type Database struct {
	DB *gorm.DB
}

// NewDatabase opens a connection with SQL logging disabled. Used by the
// migrate CLI, where the zap logger is not wired up.
func NewDatabase(cfg *config.DatabaseConfig) (*Database, error) {
	return open(cfg, logger.Default.LogMode(logger.Silent))
}

// NewDatabaseWithCustomLogger opens a connection routing SQL logs through
// the given GORM logger
func NewDatabaseWithCustomLogger(cfg *config.DatabaseConfig, gormLogger logger.Interface) (*Database, error) {
	return open(cfg, gormLogger)
}

func open(cfg *config.DatabaseConfig, gormLogger logger.Interface) (*Database, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormLogger,
		// Repositories manage transactions through TransactionScope, so the
		// per-statement wrapping transaction is pure overhead
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: failed to connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("persistence: failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("persistence: failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

// Ping reports whether the database still answers. Backs the health probes.
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("persistence: failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Close releases the connection pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("persistence: failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
