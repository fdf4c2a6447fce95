package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"mediapipe/internal/media"
)

// FileSystemStore keeps objects as files in a directory tree, with content
// type and metadata in a JSON sidecar per object:
//
//	<root>/
//	  objects/
//	    <key>        (object body)
//	  meta/
//	    <key>.json   (content type and metadata)
//
// An object without a sidecar reads back with no metadata.
type FileSystemStore struct {
	root       string
	objectsDir string
	metaDir    string
}

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata"`
}

// NewFileSystemStore creates a store rooted at root, creating its directories.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	s := &FileSystemStore{
		root:       root,
		objectsDir: filepath.Join(root, "objects"),
		metaDir:    filepath.Join(root, "meta"),
	}
	for _, dir := range []string{s.objectsDir, s.metaDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return s, nil
}

// paths maps a key to its body and sidecar paths. Keys must stay inside the
// store, so absolute keys and ".." segments are rejected.
func (s *FileSystemStore) paths(key string) (string, string, error) {
	rel := filepath.FromSlash(key)
	if key == "" || !filepath.IsLocal(rel) {
		return "", "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.objectsDir, rel), filepath.Join(s.metaDir, rel+".json"), nil
}

func (s *FileSystemStore) Get(_ context.Context, key string) (*media.Object, error) {
	bodyPath, metaPath, err := s.paths(key)
	if err != nil {
		return nil, err
	}

	body, err := os.ReadFile(bodyPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", media.ErrObjectNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", key, err)
	}

	obj := &media.Object{Key: key, Body: body}

	data, err := os.ReadFile(metaPath)
	if errors.Is(err, fs.ErrNotExist) {
		return obj, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata of %s: %w", key, err)
	}

	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decoding metadata of %s: %w", key, err)
	}
	obj.ContentType = sc.ContentType
	obj.Metadata = sc.Metadata
	return obj, nil
}

// Put writes the body first and the sidecar second, each atomically.
func (s *FileSystemStore) Put(_ context.Context, obj *media.Object) error {
	bodyPath, metaPath, err := s.paths(obj.Key)
	if err != nil {
		return err
	}

	meta, err := json.Marshal(sidecar{ContentType: obj.ContentType, Metadata: obj.Metadata})
	if err != nil {
		return fmt.Errorf("encoding metadata of %s: %w", obj.Key, err)
	}

	if err := writeFile(bodyPath, obj.Body); err != nil {
		return fmt.Errorf("writing object %s: %w", obj.Key, err)
	}
	if err := writeFile(metaPath, meta); err != nil {
		return fmt.Errorf("writing metadata of %s: %w", obj.Key, err)
	}
	return nil
}

func (s *FileSystemStore) Delete(_ context.Context, key string) error {
	bodyPath, metaPath, err := s.paths(key)
	if err != nil {
		return err
	}

	for _, p := range []string{bodyPath, metaPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
	}
	return nil
}

// ValidateSetup verifies that the store directories are accessible.
func (s *FileSystemStore) ValidateSetup(context.Context) error {
	for _, dir := range []string{s.root, s.objectsDir, s.metaDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("object store directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("object store path is not a directory: %s", dir)
		}
	}
	return nil
}

// writeFile writes data to destPath using a temp file and rename, so readers
// never see a partial object.
func writeFile(destPath string, data []byte) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.ReadFrom(bytes.NewReader(data)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ media.ObjectStore = (*FileSystemStore)(nil)
