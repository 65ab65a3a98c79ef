package source

import (
	"context"
	"fmt"

	"github.com/ledcast/caster/internal/frame"
)

// MediaFile decodes a local video file (or image sequence, via GStreamer's
// own multifilesrc-style location patterns) to RGB24 frames (spec.md
// §4.3.4). Reaching the end of the file returns ErrEOF, which the cast
// controller treats as a normal stop rather than a capture error.
type MediaFile struct {
	path          string
	width, height int
	gst           *gstSource
}

// NewMediaFile returns a MediaFile decoding path at width x height.
func NewMediaFile(path string, width, height int) *MediaFile {
	return &MediaFile{path: path, width: width, height: height}
}

func (m *MediaFile) Open(ctx context.Context) error {
	pipelineStr := fmt.Sprintf(
		"filesrc location=%q ! decodebin ! videoconvert ! videoscale ! video/x-raw,format=RGB,width=%d,height=%d ! appsink name=videosink",
		m.path, m.width, m.height,
	)
	g, err := newGstSource(pipelineStr, m.width, m.height)
	if err != nil {
		return fmt.Errorf("source: open media file %q: %w", m.path, err)
	}
	if err := g.start(); err != nil {
		return err
	}
	m.gst = g
	return nil
}

func (m *MediaFile) NextFrame(ctx context.Context) (frame.Frame, error) {
	return m.gst.nextFrame(ctx)
}

func (m *MediaFile) Close() error {
	if m.gst == nil {
		return nil
	}
	return m.gst.close()
}
