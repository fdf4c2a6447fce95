// Package objectstore implements media.ObjectStore on S3, a local directory
// tree and memory.
package objectstore

import (
	"context"
	"fmt"

	"mediapipe/internal/config"
	"mediapipe/internal/media"
)

// NewObjectStoreFromConfig creates an ObjectStore based on the object store
// config type. A non-nil sealer wraps the store so bodies are encrypted at
// rest.
func NewObjectStoreFromConfig(ctx context.Context, cfg config.ObjectStoreConfig, sealer media.Sealer) (media.ObjectStore, error) {
	var (
		store media.ObjectStore
		err   error
	)

	switch cfg.Type {
	case "memory":
		store = NewMemoryStore()
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 object store requires bucket to be set")
		}
		client, cerr := NewS3Client(ctx, cfg)
		if cerr != nil {
			return nil, cerr
		}
		store = NewS3Store(client, cfg.Bucket)
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem object store requires root to be set")
		}
		store, err = NewFileSystemStore(cfg.Root)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown object store type: %s", cfg.Type)
	}

	if sealer != nil {
		store = NewSealedStore(store, sealer)
	}
	return store, nil
}
