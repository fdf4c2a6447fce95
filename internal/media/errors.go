package media

import "errors"

var (
	// ErrUnsupportedExtension marks a content object that is not a thumbnailable
	// image. It is an expected skip, not a failure.
	ErrUnsupportedExtension = errors.New("unsupported file extension")

	ErrMalformedKey      = errors.New("malformed object key")
	ErrMissingMetadata   = errors.New("source object has no metadata")
	ErrUndecodableImage  = errors.New("source object is not a decodable image")
	ErrInvalidDimensions = errors.New("thumbnail dimensions must be positive")

	// ErrObjectNotFound is returned by ObjectStore.Get for absent keys.
	ErrObjectNotFound = errors.New("object not found")
)

// IsPermanent reports whether err was caused by the input itself, so that
// retrying the same event cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrMalformedKey) ||
		errors.Is(err, ErrMissingMetadata) ||
		errors.Is(err, ErrUndecodableImage) ||
		errors.Is(err, ErrInvalidDimensions)
}
