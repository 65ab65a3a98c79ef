package source

import (
	"context"
	"fmt"
	"runtime"

	"github.com/ledcast/caster/internal/frame"
)

// CameraCapture decodes an OS-enumerated video device by index (spec.md
// §4.3.5), sharing gstSource's appsink-callback machinery with MediaFile —
// only the pipeline's source element differs per OS.
type CameraCapture struct {
	index         int
	width, height int
	gst           *gstSource
}

// NewCameraCapture returns a CameraCapture for the given OS camera index.
func NewCameraCapture(index, width, height int) *CameraCapture {
	return &CameraCapture{index: index, width: width, height: height}
}

func (c *CameraCapture) Open(ctx context.Context) error {
	src, err := cameraSourceElement(c.index)
	if err != nil {
		return fmt.Errorf("source: camera %d: %w", c.index, err)
	}
	pipelineStr := fmt.Sprintf(
		"%s ! videoconvert ! videoscale ! video/x-raw,format=RGB,width=%d,height=%d ! appsink name=videosink",
		src, c.width, c.height,
	)
	g, err := newGstSource(pipelineStr, c.width, c.height)
	if err != nil {
		return fmt.Errorf("source: open camera %d: %w", c.index, err)
	}
	if err := g.start(); err != nil {
		return err
	}
	c.gst = g
	return nil
}

func (c *CameraCapture) NextFrame(ctx context.Context) (frame.Frame, error) {
	return c.gst.nextFrame(ctx)
}

func (c *CameraCapture) Close() error {
	if c.gst == nil {
		return nil
	}
	return c.gst.close()
}

// cameraSourceElement picks the GStreamer camera source element for the
// running OS: v4l2src on Linux, avfvideosrc on macOS, ksvideosrc on Windows
// (SPEC_FULL.md's domain-stack wiring table).
func cameraSourceElement(index int) (string, error) {
	switch runtime.GOOS {
	case "linux":
		return fmt.Sprintf("v4l2src device=/dev/video%d", index), nil
	case "darwin":
		return fmt.Sprintf("avfvideosrc device-index=%d", index), nil
	case "windows":
		return fmt.Sprintf("ksvideosrc device-index=%d", index), nil
	default:
		return "", fmt.Errorf("no camera source element known for GOOS %q", runtime.GOOS)
	}
}
