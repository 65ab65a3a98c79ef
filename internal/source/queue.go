package source

import (
	"context"
	"fmt"
	"time"

	"github.com/ledcast/caster/internal/frame"
	"github.com/ledcast/caster/internal/framebus"
)

// idleTimeout is spec.md §4.3.6's writer-silence threshold: a ts older
// than this synthesizes a default "idle" frame instead of a capture error.
const idleTimeout = 2 * time.Second

// ExternalQueue reads (bytes, ts) from a named SharedFrameSlot (spec.md
// §4.3.6 / §4.10), accepting frames from any producer process (a text
// animator, a mobile-phone browser, an external script) without that
// producer needing to know anything about the cast pipeline.
type ExternalQueue struct {
	addr          string
	slotName      string
	width, height int
	client        *framebus.Client
	seq           uint64
}

// NewExternalQueue attaches to slotName on the bus server at addr.
func NewExternalQueue(addr, slotName string) *ExternalQueue {
	return &ExternalQueue{addr: addr, slotName: slotName}
}

func (q *ExternalQueue) Open(ctx context.Context) error {
	client, err := framebus.Dial(q.addr)
	if err != nil {
		return fmt.Errorf("source: queue %q: dial bus: %w", q.slotName, err)
	}
	w, h, err := client.Attach(q.slotName)
	if err != nil {
		client.Close()
		return fmt.Errorf("source: queue %q: attach: %w", q.slotName, err)
	}
	q.client = client
	q.width, q.height = w, h
	return nil
}

// NextFrame polls the bus for the slot's latest frame. If the producer
// hasn't written in idleTimeout, a blank frame of the slot's shape is
// returned instead of propagating a stale one (spec.md §4.3.6).
func (q *ExternalQueue) NextFrame(ctx context.Context) (frame.Frame, error) {
	q.seq++
	f, updatedAt, err := q.client.Get(q.slotName)
	if err != nil || time.Since(updatedAt) > idleTimeout {
		return frame.Blank(q.width, q.height, q.seq), nil
	}
	f.Seq = q.seq
	return f, nil
}

func (q *ExternalQueue) Close() error {
	if q.client == nil {
		return nil
	}
	return q.client.Close()
}
