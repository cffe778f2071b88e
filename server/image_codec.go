package server

import (
	"bytes"
	"image"
	"image/png"

	// Raster formats accepted for best-effort PNG normalization.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// EnsurePNG normalizes arbitrary raster image bytes into PNG bytes.
//
// Input that already carries the PNG magic header is returned unchanged.
// Anything else is decoded as a generic raster image and re-encoded as PNG;
// when decoding fails the original bytes are returned as-is so the save
// path is never blocked. Idempotent: applying it twice equals applying it
// once.
func EnsurePNG(data []byte) []byte {
	if bytes.HasPrefix(data, pngMagic) {
		return data
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return data
	}

	return buf.Bytes()
}
