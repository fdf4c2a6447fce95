package objectstore

import (
	"context"
	"fmt"

	"mediapipe/internal/media"
)

// SealedStore encrypts object bodies before they reach the underlying store
// and decrypts them on the way back. Keys, content types and metadata are
// stored as given.
type SealedStore struct {
	inner  media.ObjectStore
	sealer media.Sealer
}

func NewSealedStore(inner media.ObjectStore, sealer media.Sealer) *SealedStore {
	return &SealedStore{inner: inner, sealer: sealer}
}

func (s *SealedStore) Get(ctx context.Context, key string) (*media.Object, error) {
	obj, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	body, err := s.sealer.Open(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", key, err)
	}
	obj.Body = body
	return obj, nil
}

func (s *SealedStore) Put(ctx context.Context, obj *media.Object) error {
	body, err := s.sealer.Seal(obj.Body)
	if err != nil {
		return fmt.Errorf("sealing %s: %w", obj.Key, err)
	}

	sealed := *obj
	sealed.Body = body
	return s.inner.Put(ctx, &sealed)
}

func (s *SealedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *SealedStore) ValidateSetup(ctx context.Context) error {
	return s.inner.ValidateSetup(ctx)
}

var _ media.ObjectStore = (*SealedStore)(nil)
