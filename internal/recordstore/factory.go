// Package recordstore implements media.RecordStore on DynamoDB and sqlite.
package recordstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mediapipe/internal/config"
	"mediapipe/internal/media"
)

// DatabaseFile is the sqlite file name inside record_store.data_dir.
const DatabaseFile = "mediapipe.db"

// Migrator is implemented by stores that own a schema.
type Migrator interface {
	Migrate() error
	CheckMigrations() error
}

// NewRecordStoreFromConfig creates a RecordStore based on the record store
// config type. A "memory" store is a migrated in-memory sqlite database.
func NewRecordStoreFromConfig(ctx context.Context, cfg config.RecordStoreConfig) (media.RecordStore, error) {
	switch cfg.Type {
	case "dynamodb":
		if cfg.Table == "" {
			return nil, fmt.Errorf("dynamodb record store requires table to be set")
		}
		client, err := NewDynamoDBClient(ctx, cfg.Region, cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		dayIndex := cfg.DayIndex
		if dayIndex == "" {
			dayIndex = config.DefaultDayIndex
		}
		return NewDynamoDBStore(client, cfg.Table, dayIndex), nil
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("sqlite record store requires data_dir to be set")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, DatabaseFile))
	case "memory":
		s, err := NewSQLiteStore(":memory:")
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrating in-memory store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown record store type: %s", cfg.Type)
	}
}
