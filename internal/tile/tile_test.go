package tile

import (
	"testing"

	"github.com/ledcast/caster/internal/frame"
)

func grid(w, h int) frame.Frame {
	px := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			px[i] = byte(x)
			px[i+1] = byte(y)
		}
	}
	f, _ := frame.New(w, h, px, 1)
	return f
}

func TestSplitPassThroughForOneByOne(t *testing.T) {
	f := grid(4, 4)
	out := Split(f, 1, 1, 4, 4)
	if len(out) != 1 {
		t.Fatalf("expected pass-through single frame, got %d", len(out))
	}
}

func TestSplitProducesRowMajorSubFrames(t *testing.T) {
	f := grid(4, 2) // 2x1 tile grid of 2x2 tiles
	out := Split(f, 2, 1, 2, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 tiles, got %d", len(out))
	}
	// Tile 0 covers x in [0,2), tile 1 covers x in [2,4)
	r, _, _ := out[0].At(0, 0)
	if r != 0 {
		t.Fatalf("tile 0 top-left expected x=0, got %d", r)
	}
	r1, _, _ := out[1].At(0, 0)
	if r1 != 2 {
		t.Fatalf("tile 1 top-left expected x=2, got %d", r1)
	}
}
