package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"

	"github.com/ledcast/caster/internal/frame"
)

var gstInitOnce sync.Once

func initGst() {
	gstInitOnce.Do(func() {
		gst.Init(nil)
	})
}

// gstSource drives a GStreamer pipeline ending in an appsink emitting raw
// RGB samples, shared by MediaFile and CameraCapture (spec.md §4.3.4/.5).
// Grounded on the appsink-callback pattern used for H.264 capture
// elsewhere in the pack; here the pipeline decodes to raw RGB instead of
// re-encoding, since the wire format downstream is RGB24 frames, not H.264.
type gstSource struct {
	width, height int
	pipeline      *gst.Pipeline
	appsink       *app.Sink
	frames        chan frame.Frame
	errs          chan error
	eof           chan struct{}
	seq           uint64
}

func newGstSource(pipelineStr string, width, height int) (*gstSource, error) {
	initGst()

	pipeline, err := gst.NewPipelineFromString(pipelineStr)
	if err != nil {
		return nil, fmt.Errorf("source: parse gstreamer pipeline: %w", err)
	}
	elem, err := pipeline.GetElementByName("videosink")
	if err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("source: find appsink: %w", err)
	}
	sink := app.SinkFromElement(elem)
	if sink == nil {
		pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("source: videosink element is not an appsink")
	}

	g := &gstSource{
		width:    width,
		height:   height,
		pipeline: pipeline,
		appsink:  sink,
		frames:   make(chan frame.Frame, 4),
		errs:     make(chan error, 1),
		eof:      make(chan struct{}),
	}
	return g, nil
}

func (g *gstSource) start() error {
	g.appsink.SetProperty("emit-signals", true)
	g.appsink.SetProperty("max-buffers", uint(2))
	g.appsink.SetProperty("drop", true)
	g.appsink.SetProperty("sync", false)
	g.appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: g.onNewSample,
	})
	if err := g.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("source: set pipeline playing: %w", err)
	}
	go g.watchBus()
	return nil
}

func (g *gstSource) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}
	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return gst.FlowOK
	}
	defer buffer.Unmap()

	want := g.width * g.height * 3
	if len(mapInfo.Bytes()) != want {
		return gst.FlowOK
	}
	pixels := make([]byte, want)
	copy(pixels, mapInfo.Bytes())

	g.seq++
	f, err := frame.New(g.width, g.height, pixels, g.seq)
	if err != nil {
		return gst.FlowOK
	}
	select {
	case g.frames <- f:
	default:
		// Channel full: drop this new frame rather than block the GStreamer thread.
	}
	return gst.FlowOK
}

func (g *gstSource) watchBus() {
	bus := g.pipeline.GetPipelineBus()
	if bus == nil {
		return
	}
	for {
		msg := bus.TimedPop(gst.ClockTime(200 * time.Millisecond))
		if msg == nil {
			select {
			case <-g.eof:
				return
			default:
				continue
			}
		}
		switch msg.Type() {
		case gst.MessageEOS:
			close(g.eof)
			return
		case gst.MessageError:
			if gerr := msg.ParseError(); gerr != nil {
				select {
				case g.errs <- fmt.Errorf("source: gstreamer error: %s", gerr.Error()):
				default:
				}
			}
			close(g.eof)
			return
		}
	}
}

func (g *gstSource) nextFrame(ctx context.Context) (frame.Frame, error) {
	select {
	case f := <-g.frames:
		return f, nil
	case err := <-g.errs:
		return frame.Frame{}, err
	case <-g.eof:
		select {
		case f := <-g.frames:
			return f, nil
		default:
			return frame.Frame{}, ErrEOF
		}
	case <-ctx.Done():
		return frame.Frame{}, ctx.Err()
	}
}

func (g *gstSource) close() error {
	g.pipeline.SetState(gst.StateNull)
	return nil
}
