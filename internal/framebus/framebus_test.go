package framebus

import (
	"testing"

	"github.com/ledcast/caster/internal/frame"
)

func TestCreateAttachPutGet(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	producer, err := Dial(srv.Addr())
	if err != nil {
		t.Fatalf("Dial producer: %v", err)
	}
	defer producer.Close()

	if err := producer.Create("text-overlay", 32, 8); err != nil {
		t.Fatalf("Create: %v", err)
	}

	consumer, err := Dial(srv.Addr())
	if err != nil {
		t.Fatalf("Dial consumer: %v", err)
	}
	defer consumer.Close()

	w, h, err := consumer.Attach("text-overlay")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if w != 32 || h != 8 {
		t.Fatalf("expected 32x8, got %dx%d", w, h)
	}

	f := frame.Blank(32, 8, 5)
	if err := producer.Put("text-overlay", f); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, _, err := consumer.Get("text-overlay")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Width != 32 || got.Height != 8 || got.Seq != 5 {
		t.Fatalf("unexpected frame: %+v", got)
	}
}

func TestListReflectsCreatedSlots(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	c, err := Dial(srv.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	c.Create("a", 1, 1)
	c.Create("b", 2, 2)

	names, err := c.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
}

func TestGetBeforePutFails(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	c, err := Dial(srv.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	c.Create("empty", 4, 4)
	if _, _, err := c.Get("empty"); err == nil {
		t.Fatal("expected error reading a slot with no frame yet")
	}
}

func TestDeleteRemovesSlot(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	c, err := Dial(srv.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	c.Create("temp", 1, 1)
	if err := c.Delete("temp"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := c.Info("temp"); err == nil {
		t.Fatal("expected error after delete")
	}
}
