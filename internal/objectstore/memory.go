package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"mediapipe/internal/media"
)

// MemoryStore keeps objects in memory. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*media.Object
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*media.Object)}
}

func copyObject(obj *media.Object) *media.Object {
	cp := &media.Object{
		Key:         obj.Key,
		Body:        bytes.Clone(obj.Body),
		ContentType: obj.ContentType,
	}
	if obj.Metadata != nil {
		cp.Metadata = maps.Clone(obj.Metadata)
	}
	return cp
}

func (m *MemoryStore) Get(_ context.Context, key string) (*media.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", media.ErrObjectNotFound, key)
	}
	return copyObject(obj), nil
}

func (m *MemoryStore) Put(_ context.Context, obj *media.Object) error {
	if obj.Key == "" {
		return fmt.Errorf("object key must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[obj.Key] = copyObject(obj)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	return nil
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup(context.Context) error {
	return nil
}

// Keys returns the stored keys under prefix in sorted order.
func (m *MemoryStore) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

var _ media.ObjectStore = (*MemoryStore)(nil)
