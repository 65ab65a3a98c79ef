package preview

import (
	"net"
	"testing"
	"time"

	"github.com/ledcast/caster/internal/frame"
	"github.com/ledcast/caster/internal/ipc"
)

func TestPutFrameDeliveredToAttachedViewer(t *testing.T) {
	s, err := New("desk0", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	viewer := ipc.NewConn(conn)

	s.PutFrame(frame.Blank(2, 2, 1))

	viewer.SetReadDeadline(time.Now().Add(2 * time.Second))
	env, err := viewer.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if env.Type != ipc.TypePreviewFrame {
		t.Fatalf("expected preview frame, got %s", env.Type)
	}
}

func TestPutFrameDoesNotBlockWithoutViewer(t *testing.T) {
	s, err := New("desk0", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.PutFrame(frame.Blank(1, 1, uint64(i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PutFrame blocked with no viewer attached")
	}
}
