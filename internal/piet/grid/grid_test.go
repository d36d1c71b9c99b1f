package grid

import (
	"testing"
)

func solidRGBA(w, h int, r, g, b byte) []byte {
	out := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		out[i*4], out[i*4+1], out[i*4+2], out[i*4+3] = r, g, b, 0xFF
	}
	return out
}

func TestDetectCodelSizeSolidImageIsWholeImage(t *testing.T) {
	rgba := solidRGBA(12, 12, 0xFF, 0x00, 0x00)
	size, err := DetectCodelSize(rgba, 12, 12)
	if err != nil {
		t.Fatalf("DetectCodelSize: %v", err)
	}
	if size != 12 {
		t.Errorf("size = %d, want 12 (GCD of two uniform runs of 12)", size)
	}
}

func TestDetectCodelSizeIdempotent(t *testing.T) {
	// Four 3-pixel-wide vertical stripes of Piet colors: the top row has
	// four runs of 3, the left column a single run of 12.
	rgba := make([]byte, 12*12*4)
	stripes := [4][3]byte{{0xFF, 0x00, 0x00}, {0xFF, 0xFF, 0x00}, {0x00, 0xFF, 0x00}, {0x00, 0x00, 0xFF}}
	set := func(x, y int, r, g, b byte) {
		i := (y*12 + x) * 4
		rgba[i], rgba[i+1], rgba[i+2], rgba[i+3] = r, g, b, 0xFF
	}
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			c := stripes[x/3]
			set(x, y, c[0], c[1], c[2])
		}
	}
	size, err := DetectCodelSize(rgba, 12, 12)
	if err != nil {
		t.Fatalf("DetectCodelSize: %v", err)
	}
	if size != 3 {
		t.Fatalf("size = %d, want 3", size)
	}

	g, err := Build(rgba, 12, 12, size)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	downRGBA := make([]byte, g.Width*g.Height*4)
	for i, c := range g.cells {
		rgb := c.ToRGB()
		downRGBA[i*4], downRGBA[i*4+1], downRGBA[i*4+2], downRGBA[i*4+3] = rgb.R, rgb.G, rgb.B, 0xFF
	}
	again, err := DetectCodelSize(downRGBA, g.Width, g.Height)
	if err != nil {
		t.Fatalf("DetectCodelSize on normalized image: %v", err)
	}
	if again != 1 {
		t.Errorf("detect(detect-normalized(image)) = %d, want 1", again)
	}
}

func TestDetectCodelSizeEmptyImage(t *testing.T) {
	if _, err := DetectCodelSize(nil, 0, 0); err == nil {
		t.Fatal("expected an error for an empty image")
	}
}

func TestBuildRejectsNonMultipleDimensions(t *testing.T) {
	rgba := solidRGBA(10, 10, 0, 0, 0)
	if _, err := Build(rgba, 10, 10, 3); err == nil {
		t.Fatal("expected an error when dimensions aren't a multiple of codel size")
	}
}

func TestBuildClassifiesCodels(t *testing.T) {
	rgba := make([]byte, 4*2*4)
	// Two codels of size 2: left red, right white.
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			i := (y*4 + x) * 4
			if x < 2 {
				rgba[i], rgba[i+1], rgba[i+2], rgba[i+3] = 0xFF, 0x00, 0x00, 0xFF
			} else {
				rgba[i], rgba[i+1], rgba[i+2], rgba[i+3] = 0xFF, 0xFF, 0xFF, 0xFF
			}
		}
	}
	g, err := Build(rgba, 4, 2, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.Width != 2 || g.Height != 1 {
		t.Fatalf("grid dims = %dx%d, want 2x1", g.Width, g.Height)
	}
	if !g.At(0, 0).IsChromatic() {
		t.Error("(0,0) should be chromatic red")
	}
	if !g.At(1, 0).IsWhite() {
		t.Error("(1,0) should be white")
	}
}

func TestDump(t *testing.T) {
	rgba := solidRGBA(2, 2, 0, 0, 0)
	g, err := Build(rgba, 2, 2, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := g.Dump(); got != "#\n" {
		t.Errorf("Dump() = %q, want %q", got, "#\n")
	}
}
