package objectstore

import (
	"context"
	"testing"

	"mediapipe/internal/config"
	"mediapipe/internal/encryption"
)

func TestNewObjectStoreFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("memory store", func(t *testing.T) {
		got, err := NewObjectStoreFromConfig(ctx, config.ObjectStoreConfig{Type: "memory"}, nil)
		if err != nil {
			t.Fatalf("NewObjectStoreFromConfig() error = %v", err)
		}
		if _, ok := got.(*MemoryStore); !ok {
			t.Errorf("store is %T, want *MemoryStore", got)
		}
	})

	t.Run("filesystem store", func(t *testing.T) {
		got, err := NewObjectStoreFromConfig(ctx, config.ObjectStoreConfig{Type: "filesystem", Root: t.TempDir()}, nil)
		if err != nil {
			t.Fatalf("NewObjectStoreFromConfig() error = %v", err)
		}
		if _, ok := got.(*FileSystemStore); !ok {
			t.Errorf("store is %T, want *FileSystemStore", got)
		}
	})

	t.Run("sealer wraps the store", func(t *testing.T) {
		got, err := NewObjectStoreFromConfig(ctx, config.ObjectStoreConfig{Type: "memory"}, encryption.NewTestSealer())
		if err != nil {
			t.Fatalf("NewObjectStoreFromConfig() error = %v", err)
		}
		if _, ok := got.(*SealedStore); !ok {
			t.Errorf("store is %T, want *SealedStore", got)
		}
	})

	errorCases := []struct {
		name string
		cfg  config.ObjectStoreConfig
	}{
		{"filesystem without root", config.ObjectStoreConfig{Type: "filesystem"}},
		{"s3 without bucket", config.ObjectStoreConfig{Type: "s3"}},
		{"unknown type", config.ObjectStoreConfig{Type: "gcs"}},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewObjectStoreFromConfig(ctx, tt.cfg, nil); err == nil {
				t.Error("NewObjectStoreFromConfig() expected error")
			}
		})
	}
}
