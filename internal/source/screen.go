package source

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"github.com/ledcast/caster/internal/frame"
)

// ScreenCapture grabs a whole monitor each tick (spec.md §4.3.1).
type ScreenCapture struct {
	monitor int
	seq     uint64
	bounds  image.Rectangle
}

// NewScreenCapture returns a ScreenCapture bound to the given monitor index
// (0 is the primary display).
func NewScreenCapture(monitor int) *ScreenCapture {
	return &ScreenCapture{monitor: monitor}
}

func (s *ScreenCapture) Open(ctx context.Context) error {
	n := screenshot.NumActiveDisplays()
	if s.monitor < 0 || s.monitor >= n {
		return fmt.Errorf("source: monitor index %d out of range (%d active displays)", s.monitor, n)
	}
	s.bounds = screenshot.GetDisplayBounds(s.monitor)
	return nil
}

func (s *ScreenCapture) NextFrame(ctx context.Context) (frame.Frame, error) {
	img, err := screenshot.CaptureRect(s.bounds)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("source: screen capture failed: %w", err)
	}
	s.seq++
	return rgbaToFrame(img, s.seq), nil
}

func (s *ScreenCapture) Close() error { return nil }

// AreaCapture grabs a fixed rectangle within a monitor each tick (spec.md
// §4.3.2). The rectangle is selected ahead of time by an external tool
// (§6) and passed in as already-resolved monitor-local coordinates.
type AreaCapture struct {
	monitor    int
	x, y, w, h int
	seq        uint64
	rect       image.Rectangle
}

// NewAreaCapture returns an AreaCapture for the rectangle (x, y, w, h)
// within the given monitor's coordinate space.
func NewAreaCapture(monitor, x, y, w, h int) *AreaCapture {
	return &AreaCapture{monitor: monitor, x: x, y: y, w: w, h: h}
}

func (a *AreaCapture) Open(ctx context.Context) error {
	n := screenshot.NumActiveDisplays()
	if a.monitor < 0 || a.monitor >= n {
		return fmt.Errorf("source: monitor index %d out of range (%d active displays)", a.monitor, n)
	}
	bounds := screenshot.GetDisplayBounds(a.monitor)
	a.rect = image.Rect(bounds.Min.X+a.x, bounds.Min.Y+a.y, bounds.Min.X+a.x+a.w, bounds.Min.Y+a.y+a.h)
	return nil
}

func (a *AreaCapture) NextFrame(ctx context.Context) (frame.Frame, error) {
	img, err := screenshot.CaptureRect(a.rect)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("source: area capture failed: %w", err)
	}
	a.seq++
	return rgbaToFrame(img, a.seq), nil
}

func (a *AreaCapture) Close() error { return nil }

// rgbaToFrame strips the alpha channel kbinani/screenshot always returns,
// producing the RGB24 buffer every downstream stage expects.
func rgbaToFrame(img *image.RGBA, seq uint64) frame.Frame {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		srcRow := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dstRow := out[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			dstRow[x*3] = srcRow[x*4]
			dstRow[x*3+1] = srcRow[x*4+1]
			dstRow[x*3+2] = srcRow[x*4+2]
		}
	}
	f, _ := frame.New(w, h, out, seq)
	return f
}
