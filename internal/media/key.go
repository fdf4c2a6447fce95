package media

import (
	"fmt"
	"strings"
)

// Visibility is the first segment of every content key.
type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

const (
	contentSegment   = "content"
	thumbnailSegment = "thumbnails"
	indexSegment     = "index"
	indexFileName    = "content.json"
)

// ObjectKey is a parsed content key of the form
//
//	{visibility}/content/{ownerId}/{name}
//
// Name may itself contain slashes.
type ObjectKey struct {
	Visibility Visibility
	OwnerID    string
	Name       string
}

// ParseObjectKey parses a content key. Keys that do not follow the grammar
// fail with ErrMalformedKey rather than producing an empty owner.
func ParseObjectKey(key string) (ObjectKey, error) {
	parts := strings.SplitN(key, "/", 4)
	if len(parts) != 4 {
		return ObjectKey{}, fmt.Errorf("%w: %q has too few segments", ErrMalformedKey, key)
	}

	vis := Visibility(parts[0])
	if vis != Public && vis != Private {
		return ObjectKey{}, fmt.Errorf("%w: %q has unknown visibility %q", ErrMalformedKey, key, parts[0])
	}
	if parts[1] != contentSegment {
		return ObjectKey{}, fmt.Errorf("%w: %q is not under %s/", ErrMalformedKey, key, contentSegment)
	}
	if parts[2] == "" {
		return ObjectKey{}, fmt.Errorf("%w: %q has an empty owner", ErrMalformedKey, key)
	}
	if parts[3] == "" || strings.HasSuffix(parts[3], "/") {
		return ObjectKey{}, fmt.Errorf("%w: %q has an empty name", ErrMalformedKey, key)
	}

	return ObjectKey{Visibility: vis, OwnerID: parts[2], Name: parts[3]}, nil
}

// NewObjectKey builds the content key for an owner's file.
func NewObjectKey(vis Visibility, ownerID, name string) ObjectKey {
	return ObjectKey{Visibility: vis, OwnerID: ownerID, Name: name}
}

// String returns the content key.
func (k ObjectKey) String() string {
	return strings.Join([]string{string(k.Visibility), contentSegment, k.OwnerID, k.Name}, "/")
}

// ThumbnailKey returns the key of the derived thumbnail: the same path with
// the content segment replaced by the thumbnails segment.
func (k ObjectKey) ThumbnailKey() string {
	return strings.Join([]string{string(k.Visibility), thumbnailSegment, k.OwnerID, k.Name}, "/")
}

// IsPublic reports whether the key lives in the public scope.
func (k ObjectKey) IsPublic() bool {
	return k.Visibility == Public
}

// PublicIndexKey is the location of the public "latest uploads" index.
func PublicIndexKey() string {
	return strings.Join([]string{string(Public), indexSegment, indexFileName}, "/")
}

// PrivateIndexKey is the location of an owner's private index.
func PrivateIndexKey(ownerID string) string {
	return strings.Join([]string{string(Private), indexSegment, ownerID, indexFileName}, "/")
}
