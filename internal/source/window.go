package source

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"github.com/ledcast/caster/internal/frame"
)

// windowLocator resolves a window identifier to its current screen-space
// bounds; platform files (window_windows.go, window_x11.go) supply the
// concrete implementation so WindowCapture itself stays OS-agnostic.
type windowLocator interface {
	bounds() (image.Rectangle, error)
}

// WindowCapture grabs a single window's current bounds each tick (spec.md
// §4.3.3): title lookup on Windows, window id on Linux. The window may
// move or resize between ticks, so bounds are re-resolved every frame
// rather than cached from Open.
type WindowCapture struct {
	spec    Spec
	locator windowLocator
	seq     uint64
}

// NewWindowCapture returns a WindowCapture for the window named by spec
// (Spec.Raw is the title; Spec.WindowID is used when it parsed as numeric).
func NewWindowCapture(spec Spec) *WindowCapture {
	return &WindowCapture{spec: spec}
}

func (w *WindowCapture) Open(ctx context.Context) error {
	locator, err := newWindowLocator(w.spec)
	if err != nil {
		return err
	}
	w.locator = locator
	// Fail fast if the window can't be found at all rather than only on
	// the first NextFrame call.
	if _, err := w.locator.bounds(); err != nil {
		return fmt.Errorf("source: window %q not found: %w", w.spec.Raw, err)
	}
	return nil
}

func (w *WindowCapture) NextFrame(ctx context.Context) (frame.Frame, error) {
	rect, err := w.locator.bounds()
	if err != nil {
		return frame.Frame{}, fmt.Errorf("source: window %q disappeared: %w", w.spec.Raw, err)
	}
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("source: window capture failed: %w", err)
	}
	w.seq++
	return rgbaToFrame(img, w.seq), nil
}

func (w *WindowCapture) Close() error { return nil }
