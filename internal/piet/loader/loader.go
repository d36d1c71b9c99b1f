// Package loader decodes a Piet source image (PNG or BMP) into the flat
// RGBA byte slice grid.Build consumes.
//
// Grounded on tools/font2rgba.go's decode-then-normalize-to-RGBA shape
// (image.Decode, then image/draw into a fresh *image.RGBA), extended with
// golang.org/x/image/bmp for the BMP codec the standard library omits —
// the teacher's go.mod already requires golang.org/x/image directly.
package loader

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/png"
	"io"

	"golang.org/x/image/bmp"
)

func init() {
	// Registers "bmp" with image.Decode/DecodeConfig alongside the
	// stdlib-registered "png" format (blank-imported above).
	image.RegisterFormat("bmp", "BM", bmp.Decode, bmp.DecodeConfig)
}

// DecodeImage reads a PNG or BMP image from r and returns it as a flat,
// row-major RGBA byte slice (4 bytes per pixel) along with its dimensions.
func DecodeImage(r io.Reader) (rgba []byte, width, height int, err error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decoding image: %w", err)
	}

	bounds := img.Bounds()
	width, height = bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, 0, 0, fmt.Errorf("decoding image: empty image")
	}

	normalized := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(normalized, normalized.Bounds(), img, bounds.Min, draw.Src)

	return normalized.Pix, width, height, nil
}
