package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mediapipe/internal/media"
)

func newTestFileSystemStore(t *testing.T) *FileSystemStore {
	t.Helper()
	s, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	return s
}

func TestFileSystemStore(t *testing.T) {
	storeContract(t, func(t *testing.T) media.ObjectStore { return newTestFileSystemStore(t) })
}

func TestFileSystemStore_Layout(t *testing.T) {
	ctx := context.Background()
	s := newTestFileSystemStore(t)

	key := "private/content/us-east-1:abc/holiday/beach.png"
	if err := s.Put(ctx, &media.Object{Key: key, Body: []byte("png"), Metadata: map[string]string{}}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(s.root, "objects", "private", "content", "us-east-1:abc", "holiday", "beach.png")); err != nil {
		t.Errorf("object body not at expected path: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.root, "meta", "private", "content", "us-east-1:abc", "holiday", "beach.png.json")); err != nil {
		t.Errorf("sidecar not at expected path: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(s.root, "objects", "private", "content", "us-east-1:abc", "holiday"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the object (no temp files)", len(entries))
	}
}

func TestFileSystemStore_Metadata(t *testing.T) {
	ctx := context.Background()

	t.Run("object without sidecar has no metadata", func(t *testing.T) {
		s := newTestFileSystemStore(t)
		path := filepath.Join(s.root, "objects", "public", "content", "u1", "raw.jpg")
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("raw"), 0644); err != nil {
			t.Fatal(err)
		}

		got, err := s.Get(ctx, "public/content/u1/raw.jpg")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Metadata != nil {
			t.Errorf("Metadata = %v, want nil", got.Metadata)
		}
	})

	t.Run("nil metadata round trips as nil", func(t *testing.T) {
		s := newTestFileSystemStore(t)
		if err := s.Put(ctx, &media.Object{Key: "public/content/u1/a.jpg", Body: []byte("x")}); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		got, err := s.Get(ctx, "public/content/u1/a.jpg")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Metadata != nil {
			t.Errorf("Metadata = %v, want nil", got.Metadata)
		}
	})

	t.Run("empty metadata round trips as empty", func(t *testing.T) {
		s := newTestFileSystemStore(t)
		if err := s.Put(ctx, &media.Object{Key: "public/content/u1/a.jpg", Body: []byte("x"), Metadata: map[string]string{}}); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		got, err := s.Get(ctx, "public/content/u1/a.jpg")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Metadata == nil {
			t.Error("Metadata = nil, want empty map")
		}
	})
}

func TestFileSystemStore_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestFileSystemStore(t)

	for _, key := range []string{"", "../outside.jpg", "public/../../etc/passwd", "/abs/path.jpg"} {
		t.Run(key, func(t *testing.T) {
			if err := s.Put(ctx, &media.Object{Key: key, Body: []byte("x")}); err == nil {
				t.Errorf("Put(%q) expected error", key)
			}
			if _, err := s.Get(ctx, key); err == nil {
				t.Errorf("Get(%q) expected error", key)
			}
		})
	}
}

func TestFileSystemStore_ValidateSetup_MissingRoot(t *testing.T) {
	s := newTestFileSystemStore(t)
	if err := os.RemoveAll(s.root); err != nil {
		t.Fatal(err)
	}
	if err := s.ValidateSetup(context.Background()); err == nil {
		t.Error("ValidateSetup() expected error for removed root")
	}
}
