package source

import (
	"context"
	"testing"

	"github.com/ledcast/caster/internal/frame"
	"github.com/ledcast/caster/internal/framebus"
)

func TestExternalQueueReturnsLatestFrame(t *testing.T) {
	srv, err := framebus.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	producer, err := framebus.Dial(srv.Addr())
	if err != nil {
		t.Fatalf("Dial producer: %v", err)
	}
	defer producer.Close()

	if err := producer.Create("anim", 4, 4); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := producer.Put("anim", frame.Blank(4, 4, 1)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	q := NewExternalQueue(srv.Addr(), "anim")
	if err := q.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	f, err := q.NextFrame(context.Background())
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if f.Width != 4 || f.Height != 4 {
		t.Fatalf("unexpected frame shape: %+v", f)
	}
}

func TestExternalQueueSynthesizesIdleFrameWhenStale(t *testing.T) {
	srv, err := framebus.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	producer, err := framebus.Dial(srv.Addr())
	if err != nil {
		t.Fatalf("Dial producer: %v", err)
	}
	defer producer.Close()

	if err := producer.Create("stale", 2, 2); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Never Put: no frame has ever been written, so Get fails and the
	// idle path must trigger on the very first NextFrame call too.
	q := NewExternalQueue(srv.Addr(), "stale")
	if err := q.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	f, err := q.NextFrame(context.Background())
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	want := frame.Blank(2, 2, f.Seq)
	if f.Width != want.Width || f.Height != want.Height {
		t.Fatalf("expected idle blank frame, got %+v", f)
	}
	for _, b := range f.Pixels {
		if b != 0 {
			t.Fatalf("expected idle frame to be black, found non-zero byte")
		}
	}
}

func TestExternalQueueOpenFailsOnMissingSlot(t *testing.T) {
	srv, err := framebus.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	q := NewExternalQueue(srv.Addr(), "nonexistent")
	if err := q.Open(context.Background()); err == nil {
		t.Fatal("expected error attaching to a slot that was never created")
	}
}
