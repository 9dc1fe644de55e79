package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"oswl-go/internal/config"
	"oswl-go/internal/oswl"
)

// DatabaseFile is the SQLite file name inside the configured data dir.
const DatabaseFile = "oswl.db"

// Migrator is implemented by every database returned from NewDatabaseFromConfig.
type Migrator interface {
	Migrate() error
}

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
// In-memory databases are migrated immediately since they start empty on every run.
func NewDatabaseFromConfig(ctx context.Context, cfg config.DatabaseConfig) (oswl.Database, error) {
	switch cfg.Type {
	case "sqlite", "sqlite-purego":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for %s database", cfg.Type)
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		driver := DriverCGo
		if cfg.Type == "sqlite-purego" {
			driver = DriverPureGo
		}
		db, err := NewSQLiteDatabase(filepath.Join(cfg.DataDir, DatabaseFile), driver)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "memory":
		db, err := NewSQLiteDatabase(":memory:", DriverCGo)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating memory database: %w", err)
		}
		return db, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("dsn required for postgres database")
		}
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewPostgresDatabase(pool), nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

var (
	_ Migrator = (*SQLiteDatabase)(nil)
	_ Migrator = (*PostgresDatabase)(nil)
)
