package testutil

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

// EncodeImage returns a solid width×height image encoded in the given format.
func EncodeImage(t *testing.T, width, height int, format imaging.Format) []byte {
	t.Helper()

	img := imaging.New(width, height, color.NRGBA{R: 200, G: 80, B: 40, A: 255})

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		t.Fatalf("failed to encode %dx%d test image: %v", width, height, err)
	}
	return buf.Bytes()
}

func JPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	return EncodeImage(t, width, height, imaging.JPEG)
}

func PNG(t *testing.T, width, height int) []byte {
	t.Helper()
	return EncodeImage(t, width, height, imaging.PNG)
}

func GIF(t *testing.T, width, height int) []byte {
	t.Helper()
	return EncodeImage(t, width, height, imaging.GIF)
}

// DecodeSize returns the dimensions of an encoded image.
func DecodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode image: %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
