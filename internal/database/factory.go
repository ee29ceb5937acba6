package database

import (
	"fmt"
	"path/filepath"

	"hoard/internal/config"
	"hoard/internal/hoard"
)

// NewStoreFromConfig creates a Store implementation based on the database
// config type. Pending migrations are applied on open.
func NewStoreFromConfig(cfg config.DatabaseConfig, logger hoard.Logger) (hoard.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "hoard.db"), logger)
	case "memory":
		return NewSQLiteStore(":memory:", logger)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
