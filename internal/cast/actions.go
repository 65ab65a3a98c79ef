package cast

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"strings"
	"time"

	"github.com/ledcast/caster/internal/action"
	"github.com/ledcast/caster/internal/frame"
	"github.com/ledcast/caster/internal/logging"
	"github.com/ledcast/caster/internal/multicast"
	"github.com/ledcast/caster/internal/preview"
	"github.com/ledcast/caster/internal/sendqueue"
	"github.com/ledcast/caster/internal/wire"
)

// InfoSnapshot is the JSON-shaped status the `info` action publishes
// (spec.md §4.7): "Publish a JSON-shaped status snapshot to the shared
// reply channel; may include base64 of current frame when params is
// truthy." The control surface (C13) polls LastInfo instead of a separate
// reply pipe.
type InfoSnapshot struct {
	Name         string `json:"name"`
	State        string `json:"state"`
	TotalFrames  uint64 `json:"totalFrames"`
	TotalPackets uint64 `json:"totalPackets"`
	Destinations []string `json:"destinations"`
	Image        string `json:"image,omitempty"` // base64 RGB24, only when requested
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
}

// LastInfo returns the most recent `info` action's published snapshot, or
// nil if `info` has never been invoked on this cast.
func (c *Cast) LastInfo() *InfoSnapshot {
	return c.snapshot.Load()
}

// applyActions drains every todo entry addressed to this cast and applies
// it. Run once per tick, strictly between frames, so actions never race
// the capture/pipeline/dispatch path (spec.md §4.7: "Actions run on the
// cast thread ... to avoid racing mutations on cast state").
func (c *Cast) applyActions(latest frame.Frame) {
	if c.deps.Actions == nil {
		return
	}
	actions := c.deps.Actions.Take(c.Name(), c.deps.LiveNames)
	for _, a := range actions {
		c.applyOne(a, latest)
	}
}

func (c *Cast) applyOne(a action.Action, latest frame.Frame) {
	switch a.Verb {
	case action.VerbStop:
		c.Stop()

	case action.VerbShot:
		c.shots.push(latest.Pixels, latest.Width, latest.Height)

	case action.VerbInfo:
		c.publishInfo(a.Params, latest)

	case action.VerbReset:
		c.stats.reset()

	case action.VerbHost:
		c.applyHostChange(a.Params)

	case action.VerbMulticast:
		c.applyMulticastControl(a.Params)

	case action.VerbOpenPreview:
		c.openPreview()

	case action.VerbClosePreview:
		c.closePreview()

	case action.VerbStopText:
		c.textEnabled.Store(false)

	default:
		log.Warn("unknown action verb reached cast", logging.KeyCastName, c.Name(), "verb", a.Verb)
	}
}

// truthy implements spec.md §9's Open Question on the info action's params
// truthiness rule: numeric "1" or the literal "true" (case-insensitive)
// count; anything else (including empty string) does not.
func truthy(params string) bool {
	p := strings.ToLower(strings.TrimSpace(params))
	return p == "1" || p == "true"
}

func (c *Cast) publishInfo(params string, latest frame.Frame) {
	snap := &InfoSnapshot{
		Name:         c.Name(),
		State:        c.State().String(),
		TotalFrames:  c.stats.frames.Load(),
		TotalPackets: c.stats.packets.Load(),
		Destinations: append([]string(nil), c.destAddr...),
	}
	if truthy(params) {
		snap.Image = base64.StdEncoding.EncodeToString(latest.Pixels)
		snap.Width = latest.Width
		snap.Height = latest.Height
	}
	c.snapshot.Store(snap)

	if b, err := json.Marshal(snap); err == nil {
		log.Info("cast info snapshot", logging.KeyCastName, c.Name(), "snapshot", string(b))
	}
}

func (c *Cast) applyHostChange(params string) {
	ip := net.ParseIP(params)
	if ip == nil || ip.To4() == nil {
		log.Warn("host action rejected: not a valid IPv4 address", logging.KeyCastName, c.Name(), "params", params)
		return
	}
	if len(c.queues) == 0 {
		return
	}

	port := wire.DefaultPort(strings.ToLower(c.cfg.Protocol))
	codec, err := newCodec(c.cfg)
	if err != nil {
		log.Warn("host action: failed to build codec for new destination", logging.KeyCastName, c.Name(), logging.KeyError, err)
		return
	}
	dev, err := c.deps.Devices.GetOrCreate(params, port, codec)
	if err != nil {
		log.Warn("host action: failed to dial new destination", logging.KeyCastName, c.Name(), "addr", params, logging.KeyError, err)
		return
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	c.queues[0].Drain(drainCtx)
	cancel()

	c.queues[0] = sendqueue.New(dev, c.deps.QueueDepth, c.cfg.Retry)
	c.mu.Lock()
	c.destAddr[0] = params
	c.mu.Unlock()
	if c.swapper != nil {
		enqueuers := make([]multicast.Enqueuer, len(c.queues))
		for i, q := range c.queues {
			enqueuers[i] = q.Enqueue
		}
		c.swapper = multicast.NewIPSwapper(enqueuers, c.swapper.Mode)
	}
	log.Info("cast primary destination changed", logging.KeyCastName, c.Name(), "addr", params)
}

// applyMulticastControl parses "<mode>,<ms>" or the bare "stop" form
// (spec.md §4.7's multicast verb). The millisecond interval is accepted
// for wire compatibility with the source format but the IPSwapper reorders
// once per tick regardless — there is no independent timer here.
func (c *Cast) applyMulticastControl(params string) {
	if c.swapper == nil {
		return
	}
	mode, _, _ := strings.Cut(params, ",")
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "circular":
		c.swapper.Mode = multicast.SwapCircular
	case "reverse":
		c.swapper.Mode = multicast.SwapReverse
	case "random":
		c.swapper.Mode = multicast.SwapRandom
	case "random-replace":
		c.swapper.Mode = multicast.SwapRandomReplace
	case "pause", "stop":
		c.swapper.Mode = multicast.SwapNone
	default:
		log.Warn("unknown multicast control mode", logging.KeyCastName, c.Name(), "params", params)
	}
}

func (c *Cast) openPreview() {
	if c.prev != nil {
		return
	}
	p, err := preview.New(c.Name(), "127.0.0.1:0")
	if err != nil {
		log.Warn("open-preview action failed", logging.KeyCastName, c.Name(), logging.KeyError, err)
		return
	}
	c.prev = p
}

func (c *Cast) closePreview() {
	if c.prev == nil {
		return
	}
	c.prev.Close()
	c.prev = nil
}
