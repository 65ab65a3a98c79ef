package sendqueue

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ledcast/caster/internal/device"
	"github.com/ledcast/caster/internal/frame"
	"github.com/ledcast/caster/internal/wire"
)

// testCodec is a minimal wire.Codec that emits one packet per frame; it
// exercises the queue/device wiring without depending on a specific
// lighting protocol's byte layout.
type testCodec struct{}

func (testCodec) Name() string { return "test" }
func (testCodec) Encode(f frame.Frame) []wire.Packet {
	return []wire.Packet{wire.Packet(f.Pixels)}
}

// listenerAddr starts a throwaway UDP listener and returns its address, so
// Device.Send has somewhere to write without a real LED controller.
func listenerAddr(t *testing.T) (string, int, func()) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := conn.LocalAddr().(*net.UDPAddr)
	return addr.IP.String(), addr.Port, func() { conn.Close() }
}

func TestEnqueueDrainsToDevice(t *testing.T) {
	ip, port, cleanup := listenerAddr(t)
	defer cleanup()

	reg := device.NewRegistry()
	dev, err := reg.GetOrCreate(ip, port, testCodec{})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	q := New(dev, 10, 0)
	f := frame.Blank(2, 2, 1)
	if !q.Enqueue(f) {
		t.Fatal("Enqueue should succeed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.Drain(ctx)

	if dev.FrameCount() != 1 {
		t.Fatalf("expected 1 frame sent, got %d", dev.FrameCount())
	}
}

func TestEnqueueAfterStopAcceptingReturnsFalse(t *testing.T) {
	ip, port, cleanup := listenerAddr(t)
	defer cleanup()

	reg := device.NewRegistry()
	dev, _ := reg.GetOrCreate(ip, port, testCodec{})
	q := New(dev, 10, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.Drain(ctx)

	if q.Enqueue(frame.Blank(1, 1, 1)) {
		t.Fatal("Enqueue after Drain should return false")
	}
}
