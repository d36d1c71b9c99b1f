package loader

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int, fill color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeImagePNGNormalizesToRGBA(t *testing.T) {
	data := encodePNG(t, 3, 2, color.RGBA{R: 0xFF, G: 0x00, B: 0x00, A: 0xFF})
	rgba, w, h, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if w != 3 || h != 2 {
		t.Fatalf("dims = %dx%d, want 3x2", w, h)
	}
	if len(rgba) != 3*2*4 {
		t.Fatalf("len(rgba) = %d, want %d", len(rgba), 3*2*4)
	}
	if rgba[0] != 0xFF || rgba[1] != 0x00 || rgba[2] != 0x00 || rgba[3] != 0xFF {
		t.Errorf("pixel 0 = %v, want opaque red", rgba[0:4])
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	if _, _, _, err := DecodeImage(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Fatal("expected an error for undecodable input")
	}
}
