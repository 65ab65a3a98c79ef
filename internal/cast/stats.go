package cast

import (
	"sync"
	"sync/atomic"
	"time"
)

// stats holds the monotonic counters spec.md §3/§5 attach to a running
// cast: incremented only by the owning cast goroutine, read by any
// goroutine (the control surface, sys-charts).
type stats struct {
	frames    atomic.Uint64
	packets   atomic.Uint64
	startedAt atomic.Int64 // UnixNano
}

func (s *stats) start() {
	s.startedAt.Store(time.Now().UnixNano())
}

func (s *stats) recordFrame() {
	s.frames.Add(1)
}

func (s *stats) addPackets(n uint64) {
	s.packets.Add(n)
}

// reset zeros the frame/packet counters without touching StartedAt
// (spec.md §4.7's `reset` action: "zero global frame/packet counters").
func (s *stats) reset() {
	s.frames.Store(0)
	s.packets.Store(0)
}

// Snapshot is the point-in-time view of a Cast's stats.
type Snapshot struct {
	Name         string    `json:"name"`
	State        string    `json:"state"`
	TotalFrames  uint64    `json:"totalFrames"`
	TotalPackets uint64    `json:"totalPackets"`
	StartedAt    time.Time `json:"startedAt"`
}

// Stats returns a snapshot of the cast's current counters.
func (c *Cast) Stats() Snapshot {
	return Snapshot{
		Name:         c.cfg.Name,
		State:        c.State().String(),
		TotalFrames:  c.stats.frames.Load(),
		TotalPackets: c.stats.packets.Load(),
		StartedAt:    time.Unix(0, c.stats.startedAt.Load()),
	}
}

// shotRing is the bounded FIFO of snapshotted frames the `shot` action
// appends to (spec.md §4.7: "Snapshot current processed frame into the
// cast's frame buffer (bounded, FIFO of size frame_max)").
type shotRing struct {
	max int

	mu      sync.Mutex
	frames  [][]byte
	widths  []int
	heights []int
}

func newShotRing(max int) *shotRing {
	if max < 1 {
		max = 10
	}
	return &shotRing{max: max}
}

func (r *shotRing) push(pixels []byte, width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := make([]byte, len(pixels))
	copy(cp, pixels)

	r.frames = append(r.frames, cp)
	r.widths = append(r.widths, width)
	r.heights = append(r.heights, height)
	if len(r.frames) > r.max {
		r.frames = r.frames[1:]
		r.widths = r.widths[1:]
		r.heights = r.heights[1:]
	}
}

// Latest returns the most recently shot frame's bytes, or nil if none has
// been taken yet.
func (r *shotRing) latest() ([]byte, int, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.frames) == 0 {
		return nil, 0, 0, false
	}
	n := len(r.frames) - 1
	return r.frames[n], r.widths[n], r.heights[n], true
}
