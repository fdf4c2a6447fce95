package testutil

import (
	"context"
	"sync"
	"testing"

	"mediapipe/internal/media"
	"mediapipe/internal/objectstore"
	"mediapipe/internal/recordstore"
)

// NewTestObjectStore creates a new in-memory object store.
func NewTestObjectStore() *objectstore.MemoryStore {
	return objectstore.NewMemoryStore()
}

// NewTestRecordStore creates an in-memory sqlite record store with the schema
// applied. The store is closed when the test completes.
func NewTestRecordStore(t *testing.T) *recordstore.SQLiteStore {
	t.Helper()

	s, err := recordstore.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open record store: %v", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		t.Fatalf("failed to migrate record store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// FaultyObjectStore wraps an ObjectStore and fails the operations whose
// error is set.
type FaultyObjectStore struct {
	media.ObjectStore

	mu        sync.Mutex
	GetErr    error
	PutErr    error
	DeleteErr error
	// FailKey, when set, limits injected failures to one key.
	FailKey string
}

func (f *FaultyObjectStore) fail(key string, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil || (f.FailKey != "" && f.FailKey != key) {
		return nil
	}
	return err
}

func (f *FaultyObjectStore) Get(ctx context.Context, key string) (*media.Object, error) {
	if err := f.fail(key, f.GetErr); err != nil {
		return nil, err
	}
	return f.ObjectStore.Get(ctx, key)
}

func (f *FaultyObjectStore) Put(ctx context.Context, obj *media.Object) error {
	if err := f.fail(obj.Key, f.PutErr); err != nil {
		return err
	}
	return f.ObjectStore.Put(ctx, obj)
}

func (f *FaultyObjectStore) Delete(ctx context.Context, key string) error {
	if err := f.fail(key, f.DeleteErr); err != nil {
		return err
	}
	return f.ObjectStore.Delete(ctx, key)
}

// FaultyRecordStore wraps a RecordStore and fails the operations whose error
// is set.
type FaultyRecordStore struct {
	media.RecordStore

	PutErr   error
	QueryErr error
}

func (f *FaultyRecordStore) PutRecord(ctx context.Context, rec *media.ContentRecord) error {
	if f.PutErr != nil {
		return f.PutErr
	}
	return f.RecordStore.PutRecord(ctx, rec)
}

func (f *FaultyRecordStore) QueryByOwner(ctx context.Context, ownerID string, isPublic bool) ([]*media.ContentRecord, error) {
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	return f.RecordStore.QueryByOwner(ctx, ownerID, isPublic)
}

func (f *FaultyRecordStore) QueryByDay(ctx context.Context, day string, isPublic bool, limit int) ([]*media.ContentRecord, error) {
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	return f.RecordStore.QueryByDay(ctx, day, isPublic, limit)
}
