package media

import (
	"bytes"
	"fmt"
	"math"

	"github.com/disintegration/imaging"
)

// thumbnailExtensions is the allow-list of source formats.
var thumbnailExtensions = map[string]bool{
	"jpg": true,
	"png": true,
	"gif": true,
}

// IsThumbnailable reports whether a file extension (without the dot) is on
// the allow-list.
func IsThumbnailable(ext string) bool {
	return thumbnailExtensions[ext]
}

// ScaleDimensions fits width×height into maxWidth×maxHeight with a single
// factor applied to both axes. The factor is not clamped, so sources smaller
// than the box are scaled up.
func ScaleDimensions(width, height, maxWidth, maxHeight int) (int, int, error) {
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: source is %dx%d", ErrInvalidDimensions, width, height)
	}

	scale := math.Min(float64(maxWidth)/float64(width), float64(maxHeight)/float64(height))
	w := int(math.Floor(scale * float64(width)))
	h := int(math.Floor(scale * float64(height)))
	if w < 1 || h < 1 {
		return 0, 0, fmt.Errorf("%w: %dx%d scaled to %dx%d", ErrInvalidDimensions, width, height, w, h)
	}
	return w, h, nil
}

// Thumbnail is a rendered thumbnail.
type Thumbnail struct {
	Data   []byte
	Width  int
	Height int
}

// RenderThumbnail decodes src, scales it into the box and re-encodes it in
// the format named by ext.
func RenderThumbnail(src []byte, ext string, maxWidth, maxHeight int) (*Thumbnail, error) {
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExtension, ext)
	}

	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodableImage, err)
	}

	bounds := img.Bounds()
	w, h, err := ScaleDimensions(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)
	if err != nil {
		return nil, err
	}

	resized := imaging.Resize(img, w, h, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}

	return &Thumbnail{Data: buf.Bytes(), Width: w, Height: h}, nil
}
