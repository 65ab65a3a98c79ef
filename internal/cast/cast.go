// Package cast implements the Cast Controller (C9, spec.md §4.9): the
// per-source state machine that owns one running cast's source, pipeline,
// fan-out and action application. One goroutine per Cast, matching the
// teacher's "one thread per unit of work, no shared sockets" concurrency
// model — here realized with a single owned goroutine per cast instead of
// an OS thread.
package cast

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ledcast/caster/internal/action"
	"github.com/ledcast/caster/internal/config"
	"github.com/ledcast/caster/internal/device"
	"github.com/ledcast/caster/internal/frame"
	"github.com/ledcast/caster/internal/logging"
	"github.com/ledcast/caster/internal/multicast"
	"github.com/ledcast/caster/internal/pipeline"
	"github.com/ledcast/caster/internal/preview"
	"github.com/ledcast/caster/internal/sendqueue"
	"github.com/ledcast/caster/internal/source"
	"github.com/ledcast/caster/internal/tile"
	"github.com/ledcast/caster/internal/wire"
)

var log = logging.L("cast")

// State mirrors the spec.md §4.9 state machine.
type State int

const (
	Idle State = iota
	Opening
	Running
	Closing
	Terminated
)

func (s State) String() string {
	switch s {
	case Opening:
		return "opening"
	case Running:
		return "running"
	case Closing:
		return "closing"
	case Terminated:
		return "terminated"
	default:
		return "idle"
	}
}

// Recorder is the side-channel tap a Cast writes processed frames to when
// record_enabled is set (C14). Defined here, satisfied by internal/record,
// so this package doesn't need to depend on every storage backend — it
// only needs a place to hand frames off that never blocks the hot path.
type Recorder interface {
	Write(f frame.Frame) error
	Close() error
}

// Deps are the process-wide collaborators every Cast shares, injected by
// the Controller so this package never reaches for a singleton itself
// (spec.md §9: "avoid singletons").
type Deps struct {
	Devices    *device.Registry
	Actions    *action.Registry
	QueueDepth int
	BusAddr    string // shared frame bus address, for source.KindQueue
	LiveNames func(name string) bool
	// NewRecorder builds a C14 record sink for a cast whose config enables
	// recording. destinations is the cast's resolved destination list, so a
	// `record_sink: device` target can reuse the cast's own WLED connection
	// without this package depending on internal/record.
	NewRecorder func(cfg config.RecordConfig, castName string, destinations []string) (Recorder, error)
}

// Cast is one running capture-to-LED pipeline instance (spec.md §3).
type Cast struct {
	cfg  config.CastConfig
	deps Deps

	mu    sync.Mutex
	state State

	src      source.Source
	pipe     *pipeline.Pipeline
	queues   []*sendqueue.Queue
	destAddr []string // parallel to queues, mutable via the `host` action
	swapper  *multicast.IPSwapper
	prev     *preview.Slot
	recorder Recorder

	stats    stats
	snapshot atomic.Pointer[InfoSnapshot]
	shots    *shotRing

	textEnabled atomic.Bool

	stopRequested atomic.Bool
	done          chan struct{}
}

// New constructs a Cast in the Idle state. Call Start to run it.
func New(cfg config.CastConfig, deps Deps) *Cast {
	c := &Cast{
		cfg:   cfg,
		deps:  deps,
		state: Idle,
		done:  make(chan struct{}),
		shots: newShotRing(cfg.FrameMax),
	}
	c.textEnabled.Store(true)
	return c
}

// Name returns the cast's configured name.
func (c *Cast) Name() string { return c.cfg.Name }

// State returns the cast's current lifecycle state.
func (c *Cast) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Cast) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	log.Info("cast state transition", logging.KeyCastName, c.cfg.Name, "state", s.String())
}

// Stop requests the cast stop at the next tick boundary (spec.md §4.9:
// "transitions to Closing at the next tick boundary").
func (c *Cast) Stop() {
	c.stopRequested.Store(true)
}

// Done is closed once the cast reaches Terminated.
func (c *Cast) Done() <-chan struct{} { return c.done }

// Destinations returns a copy of the cast's current destination IPs, safe
// to call from any goroutine (the `host` action mutates the primary entry
// under c.mu, so readers take the same lock).
func (c *Cast) Destinations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.destAddr...)
}

// Start runs Opening synchronously (so the caller learns about a BadConfig
// or DeviceUnreachable failure immediately) and, on success, spawns the
// Running/Closing loop in its own goroutine.
func (c *Cast) Start(ctx context.Context) error {
	if err := c.open(ctx); err != nil {
		c.setState(Terminated)
		close(c.done)
		return err
	}
	c.setState(Running)
	c.stats.start()
	go c.run(ctx)
	return nil
}

func (c *Cast) open(ctx context.Context) error {
	c.setState(Opening)

	destinations := c.cfg.Destinations()
	if len(destinations) == 0 {
		return fmt.Errorf("cast %s: no destinations configured", c.cfg.Name)
	}
	for _, d := range destinations {
		if ip := net.ParseIP(d); ip == nil || ip.To4() == nil {
			return fmt.Errorf("cast %s: destination %q is not a valid IPv4 address", c.cfg.Name, d)
		}
	}

	port := wire.DefaultPort(strings.ToLower(c.cfg.Protocol))

	if c.cfg.WLED {
		if err := c.negotiateWLED(ctx, destinations); err != nil {
			return err
		}
	}

	c.queues = make([]*sendqueue.Queue, 0, len(destinations))
	c.destAddr = append([]string(nil), destinations...)
	for _, addr := range destinations {
		codec, err := newCodec(c.cfg)
		if err != nil {
			return fmt.Errorf("cast %s: %w", c.cfg.Name, err)
		}
		dev, err := c.deps.Devices.GetOrCreate(addr, port, codec)
		if err != nil {
			return fmt.Errorf("cast %s: device %s: %w", c.cfg.Name, addr, err)
		}
		c.queues = append(c.queues, sendqueue.New(dev, c.deps.QueueDepth, c.cfg.Retry))
	}

	if c.cfg.Multicast {
		enqueuers := make([]multicast.Enqueuer, len(c.queues))
		for i, q := range c.queues {
			enqueuers[i] = q.Enqueue
		}
		c.swapper = multicast.NewIPSwapper(enqueuers, multicast.SwapNone)
	}

	c.pipe = pipeline.New(c.cfg.Filters)

	spec, err := source.ParseSpec(c.cfg.SourceSpec)
	if err != nil {
		return fmt.Errorf("cast %s: %w", c.cfg.Name, err)
	}
	src, err := source.New(spec, c.cfg.ScaleWidth, c.cfg.ScaleHeight, c.deps.BusAddr)
	if err != nil {
		return fmt.Errorf("cast %s: %w", c.cfg.Name, err)
	}
	if err := src.Open(ctx); err != nil {
		return fmt.Errorf("cast %s: open source: %w", c.cfg.Name, err)
	}
	c.src = src

	if c.cfg.Preview.Enabled {
		p, err := preview.New(c.cfg.Name, "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("cast %s: open preview slot: %w", c.cfg.Name, err)
		}
		c.prev = p
	}

	if c.cfg.Record.Enabled && c.deps.NewRecorder != nil {
		rec, err := c.deps.NewRecorder(c.cfg.Record, c.cfg.Name, c.destAddr)
		if err != nil {
			return fmt.Errorf("cast %s: open recorder: %w", c.cfg.Name, err)
		}
		c.recorder = rec
	}

	return nil
}

// negotiateWLEDTimeout bounds the Opening-phase WLED probe (spec.md §5).
const negotiateWLEDTimeout = 1 * time.Second

func (c *Cast) negotiateWLED(ctx context.Context, destinations []string) error {
	negotiated := false
	for i, addr := range destinations {
		probeCtx, cancel := context.WithTimeout(ctx, negotiateWLEDTimeout)
		wc := device.NewWLEDClient(addr)
		info, err := wc.FetchInfo(probeCtx)
		if err != nil {
			cancel()
			return fmt.Errorf("cast %s: wled negotiation with %s: %w", c.cfg.Name, addr, err)
		}
		if i == 0 && info.Leds.Matrix.W > 0 && info.Leds.Matrix.H > 0 {
			c.cfg.ScaleWidth = info.Leds.Matrix.W
			c.cfg.ScaleHeight = info.Leds.Matrix.H
			negotiated = true
		}
		if err := wc.SetLive(probeCtx, true, true); err != nil {
			cancel()
			return fmt.Errorf("cast %s: wled set-live on %s: %w", c.cfg.Name, addr, err)
		}
		cancel()
	}
	if negotiated {
		log.Info("wled matrix negotiated", logging.KeyCastName, c.cfg.Name, "width", c.cfg.ScaleWidth, "height", c.cfg.ScaleHeight)
	}
	return nil
}

func (c *Cast) run(ctx context.Context) {
	defer c.close(ctx)

	start := time.Now()
	var seq uint64

	for {
		if c.stopRequested.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		f, err := c.src.NextFrame(ctx)
		if err == source.ErrEOF {
			log.Info("cast source reached EOF", logging.KeyCastName, c.cfg.Name)
			return
		}
		if err != nil {
			log.Error("cast source error, aborting cast", logging.KeyCastName, c.cfg.Name, logging.KeyError, err)
			return
		}

		targetW, targetH := c.cfg.ScaleWidth, c.cfg.ScaleHeight
		if c.cfg.Multicast && c.cfg.TileX*c.cfg.TileY > 1 {
			// The tile splitter (spec.md §4.5) slices a frame sized for the
			// whole virtual matrix into per-destination scaleW x scaleH
			// sub-frames, so the pipeline must target that larger size here
			// rather than a single tile's size.
			targetW *= c.cfg.TileX
			targetH *= c.cfg.TileY
		}
		out := c.pipe.Apply(f, targetW, targetH)
		seq++
		out.Seq = seq

		c.dispatch(out)

		if c.recorder != nil {
			if err := c.recorder.Write(out); err != nil {
				log.Warn("record sink write failed", logging.KeyCastName, c.cfg.Name, logging.KeyError, err)
			}
		}
		if c.prev != nil {
			c.prev.PutFrame(out)
		}

		c.stats.recordFrame()
		c.applyActions(out)

		c.pace(start, seq)
	}
}

func (c *Cast) dispatch(f frame.Frame) {
	tileCount := c.cfg.TileX * c.cfg.TileY

	if c.cfg.Multicast {
		var frames []frame.Frame
		if tileCount > 1 {
			frames = tile.Split(f, c.cfg.TileX, c.cfg.TileY, c.cfg.ScaleWidth, c.cfg.ScaleHeight)
		} else {
			frames = []frame.Frame{f}
		}
		multicast.Dispatch(frames, c.swapper.Next())
		// Packet counts are per destination, so estimate off one already-split
		// sub-frame (scaleW x scaleH) rather than the pre-split frame, which
		// is sized for the whole tile grid when tileCount > 1.
		if len(frames) > 0 {
			c.stats.addPackets(estimatePackets(c.cfg, frames[0], len(frames)))
		}
		return
	}

	for _, q := range c.queues {
		q.Enqueue(f)
	}
	c.stats.addPackets(estimatePackets(c.cfg, f, len(c.queues)))
}

func (c *Cast) pace(start time.Time, seq uint64) {
	expected := start.Add(time.Duration(seq) * time.Second / time.Duration(c.cfg.RateFPS))
	if d := time.Until(expected); d > 0 {
		time.Sleep(d)
	}
}

func (c *Cast) close(ctx context.Context) {
	c.setState(Closing)

	for _, q := range c.queues {
		drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		q.Drain(drainCtx)
		cancel()
	}
	if c.src != nil {
		if err := c.src.Close(); err != nil {
			log.Warn("error closing source", logging.KeyCastName, c.cfg.Name, logging.KeyError, err)
		}
	}
	if c.prev != nil {
		c.prev.Close()
	}
	if c.recorder != nil {
		if err := c.recorder.Close(); err != nil {
			log.Warn("error closing recorder", logging.KeyCastName, c.cfg.Name, logging.KeyError, err)
		}
	}
	if c.cfg.WLED {
		for _, addr := range c.destAddr {
			probeCtx, cancel := context.WithTimeout(context.Background(), negotiateWLEDTimeout)
			if err := device.NewWLEDClient(addr).SetLive(probeCtx, true, false); err != nil {
				log.Debug("wled release-live failed on close", logging.KeyCastName, c.cfg.Name, "addr", addr, logging.KeyError, err)
			}
			cancel()
		}
	}

	c.setState(Terminated)
	close(c.done)
}
