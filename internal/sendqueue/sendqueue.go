// Package sendqueue implements the per-Device bounded FIFO (spec.md §4.2):
// one queue and one dedicated worker goroutine per destination, so a slow
// or unreachable device never backpressures the capture loop. Adapted from
// the teacher agent's internal/workerpool accept/drain/panic-recovery shape,
// specialized to a single-worker, frame-typed queue per Device instead of a
// generic task pool.
package sendqueue

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ledcast/caster/internal/device"
	"github.com/ledcast/caster/internal/frame"
	"github.com/ledcast/caster/internal/logging"
)

var log = logging.L("sendqueue")

// defaultDepthWarnThreshold is the queue depth (spec.md §4.2 default 500)
// at which an enqueue logs a warning but still accepts the frame; the
// queue holds one frame past the threshold before it drops.
const defaultDepthWarnThreshold = 500

// Queue is one bounded FIFO of frames destined for a single Device.
type Queue struct {
	dev       *device.Device
	retry     int
	threshold int

	frames    chan frame.Frame
	wg        sync.WaitGroup
	accepting atomic.Bool
	stopOnce  sync.Once
	stopChan  chan struct{}
}

// New starts a queue of the given depth draining into dev. retry is passed
// through to Device.Send on every frame (spec.md §4.1's 1+retry resend).
func New(dev *device.Device, depth, retry int) *Queue {
	if depth < 1 {
		depth = defaultDepthWarnThreshold
	}
	q := &Queue{
		dev:       dev,
		retry:     retry,
		threshold: depth,
		frames:    make(chan frame.Frame, depth+1),
		stopChan:  make(chan struct{}),
	}
	q.accepting.Store(true)

	q.wg.Add(1)
	go q.worker()

	return q
}

// Enqueue submits a frame for sending. Returns false if the queue has been
// stopped or is full (the caller — the cast controller — drops the frame
// rather than blocking the capture loop, per spec.md §4.2).
func (q *Queue) Enqueue(f frame.Frame) bool {
	if !q.accepting.Load() {
		return false
	}

	if len(q.frames) >= q.threshold {
		log.Warn("send queue depth above threshold", logging.KeyDevice, q.dev.Addr, "depth", len(q.frames))
	}

	select {
	case q.frames <- f:
		return true
	default:
		log.Warn("send queue full, dropping frame", logging.KeyDevice, q.dev.Addr)
		return false
	}
}

// StopAccepting prevents further Enqueue calls from succeeding.
func (q *Queue) StopAccepting() {
	q.accepting.Store(false)
}

// Drain stops the worker once the queue empties, or when ctx expires.
func (q *Queue) Drain(ctx context.Context) {
	q.StopAccepting()
	q.stopOnce.Do(func() { close(q.stopChan) })

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("send queue drain timed out", logging.KeyDevice, q.dev.Addr)
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case f, ok := <-q.frames:
			if !ok {
				return
			}
			q.sendOne(f)
		case <-q.stopChan:
			q.drainRemaining()
			return
		}
	}
}

func (q *Queue) drainRemaining() {
	for {
		select {
		case f, ok := <-q.frames:
			if !ok {
				return
			}
			q.sendOne(f)
		default:
			return
		}
	}
}

func (q *Queue) sendOne(f frame.Frame) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("send queue worker panicked", logging.KeyDevice, q.dev.Addr, "panic", r)
		}
	}()

	// Device.Send logs the Online->Warned transition itself; failures here
	// are tracked only as a state change, not re-logged per frame.
	_ = q.dev.Send(f, q.retry)
}
