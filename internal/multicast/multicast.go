// Package multicast implements the synchronized fan-out dispatcher (C6,
// spec.md §4.6): N sub-frames (or one frame replicated N times) are handed
// to N destinations in parallel, gated by a barrier so a tile grid presents
// a consistent visual instant. Adapted from the teacher agent's
// internal/workerpool bounded worker/task shape, specialized to a per-tick
// barrier with a 1s timeout instead of an open-ended task queue.
package multicast

import (
	"sync"
	"time"

	"github.com/ledcast/caster/internal/frame"
	"github.com/ledcast/caster/internal/logging"
)

var log = logging.L("multicast")

// barrierTimeout bounds how long Dispatch waits for every destination's
// enqueue to finish (spec.md §5).
const barrierTimeout = 1 * time.Second

// Enqueuer is the per-destination sink Dispatch fans out to — normally a
// sendqueue.Queue's Enqueue method, injected so this package doesn't import
// the device/sendqueue packages directly.
type Enqueuer func(f frame.Frame) bool

// Dispatch submits one enqueue per (frame, enqueuer) pair in parallel and
// waits on a barrier bounded by barrierTimeout. Any enqueuer whose call
// hasn't returned by the deadline is abandoned with a warning for that tick
// only — it is not canceled, merely no longer waited on.
func Dispatch(frames []frame.Frame, enqueuers []Enqueuer) {
	n := len(enqueuers)
	if n == 0 {
		return
	}
	if len(frames) == 1 && n > 1 {
		frames = replicate(frames[0], n)
	}
	if len(frames) != n {
		log.Error("multicast dispatch size mismatch", "frames", len(frames), "destinations", n)
		return
	}

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			if !enqueuers[i](frames[i]) {
				log.Warn("multicast enqueue dropped", "destination", i)
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(barrierTimeout):
		log.Warn("multicast barrier timed out, continuing without stragglers")
	}
}

func replicate(f frame.Frame, n int) []frame.Frame {
	out := make([]frame.Frame, n)
	for i := range out {
		out[i] = f
	}
	return out
}
