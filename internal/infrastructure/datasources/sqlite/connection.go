package sqlite

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"token-registry.backend/internal/config"
)

// NewConnection opens the wallet-local database file. Writers are serialized by the unit of work,
// so one connection is enough and avoids SQLITE_BUSY between pooled connections.
func NewConnection(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.SQLitePath == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := gorm.Open(sqlite.Open(cfg.SQLiteDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get generic database object: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
