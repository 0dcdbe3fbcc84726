package database

import (
	"fmt"
	"os"
	"path/filepath"

	"scenedeck/internal/config"
	"scenedeck/internal/deck"
)

// DatabaseFileName is the state database file inside the data directory.
const DatabaseFileName = "deck.db"

// NewDatabaseFromConfig opens the state database selected by cfg and brings
// its schema up to date.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, clock deck.Clock) (*SQLiteDatabase, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		path = filepath.Join(cfg.DataDir, DatabaseFileName)
	case "memory":
		path = memoryPath
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(path, clock)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return db, nil
}
