package pipeline

import (
	"testing"

	"github.com/ledcast/caster/internal/config"
	"github.com/ledcast/caster/internal/frame"
)

func solid(w, h int, r, g, b byte) frame.Frame {
	px := make([]byte, w*h*3)
	for i := 0; i < w*h; i++ {
		px[i*3], px[i*3+1], px[i*3+2] = r, g, b
	}
	f, _ := frame.New(w, h, px, 1)
	return f
}

func TestApplyResizesToTarget(t *testing.T) {
	p := New(config.FilterConfig{Gamma: 1.0})
	f := solid(10, 10, 100, 100, 100)
	out := p.Apply(f, 4, 4)
	if out.Width != 4 || out.Height != 4 {
		t.Fatalf("expected 4x4, got %dx%d", out.Width, out.Height)
	}
}

func TestGammaIdentityAtOne(t *testing.T) {
	p := New(config.FilterConfig{Gamma: 1.0})
	f := solid(2, 2, 128, 64, 200)
	out := p.Apply(f, 2, 2)
	r, g, b := out.At(0, 0)
	if r != 128 || g != 64 || b != 200 {
		t.Fatalf("gamma=1 should be near-identity, got (%d,%d,%d)", r, g, b)
	}
}

func TestBalanceZeroChannelActsAsNoOp(t *testing.T) {
	p := New(config.FilterConfig{Gamma: 1.0, BalanceRed: 0, BalanceGreen: 0, BalanceBlue: 0})
	f := solid(2, 2, 10, 20, 30)
	out := p.Apply(f, 2, 2)
	r, g, b := out.At(0, 0)
	if r != 10 || g != 20 || b != 30 {
		t.Fatalf("zero balance values should be no-ops, got (%d,%d,%d)", r, g, b)
	}
}

func TestBalanceAttenuatesChannel(t *testing.T) {
	p := New(config.FilterConfig{Gamma: 1.0, BalanceRed: 128, BalanceGreen: 255, BalanceBlue: 255})
	f := solid(2, 2, 200, 200, 200)
	out := p.Apply(f, 2, 2)
	r, _, _ := out.At(0, 0)
	if r >= 200 {
		t.Fatalf("expected red channel attenuated below 200, got %d", r)
	}
}

func TestFlipHorizontalSwapsColumns(t *testing.T) {
	p := New(config.FilterConfig{Gamma: 1.0, Flip: true, FlipVH: 0})
	px := make([]byte, 2*1*3)
	px[0], px[1], px[2] = 1, 2, 3    // (0,0)
	px[3], px[4], px[5] = 9, 9, 9    // (1,0)
	f, _ := frame.New(2, 1, px, 1)
	out := p.Apply(f, 2, 1)
	r, g, b := out.At(0, 0)
	if r != 9 || g != 9 || b != 9 {
		t.Fatalf("expected column 0 to hold the former column 1 after horizontal flip, got (%d,%d,%d)", r, g, b)
	}
}

func TestAutoLevelStretchesLowContrastFrame(t *testing.T) {
	p := New(config.FilterConfig{Gamma: 1.0, AutoLevel: true, AutoPercent: 1})
	px := []byte{100, 100, 100, 150, 150, 150}
	f, _ := frame.New(2, 1, px, 1)
	out := p.Apply(f, 2, 1)
	r0, _, _ := out.At(0, 0)
	r1, _, _ := out.At(1, 0)
	if r1-r0 <= 50 {
		t.Fatalf("expected auto level to widen the 100..150 range, got %d..%d", r0, r1)
	}
}
