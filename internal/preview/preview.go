// Package preview implements the cross-process frame mirror (C8, spec.md
// §4.8): a cast writes each processed frame into a PreviewSlot that a
// separate viewer process attaches to over a TCP loopback connection,
// carried by internal/ipc's length-prefixed, HMAC-signed Conn in place of
// the teacher's original shared-memory transport. Preview is purely
// observational — PutFrame never blocks the cast loop, and a slow or
// absent viewer never backpressures the sender.
package preview

import (
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"

	"github.com/ledcast/caster/internal/frame"
	"github.com/ledcast/caster/internal/ipc"
	"github.com/ledcast/caster/internal/logging"
)


var log = logging.L("preview")

// Slot mirrors one cast's processed frames to at most one attached viewer.
type Slot struct {
	name     string
	listener net.Listener

	mu      sync.Mutex
	conn    *ipc.Conn
	seq     atomic.Uint64
	latest  chan frame.Frame // size 1, overwritten-on-full mailbox
	control chan ipc.PreviewControl
	done    chan struct{}
}

// New opens a loopback listener for the named slot and starts the accept
// loop. addr may be "127.0.0.1:0" to let the OS choose a port; the bound
// address is available from Addr so it can be published (e.g. over the
// control surface) for a viewer to connect to.
func New(name, addr string) (*Slot, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Slot{
		name:     name,
		listener: ln,
		latest:   make(chan frame.Frame, 1),
		control:  make(chan ipc.PreviewControl, 8),
		done:     make(chan struct{}),
	}
	go s.acceptLoop()
	go s.writeLoop()
	return s, nil
}

// Addr returns the bound listener address, for publishing to a viewer.
func (s *Slot) Addr() string { return s.listener.Addr().String() }

func (s *Slot) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return // listener closed
		}
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close() // single-writer/single-reader by convention, spec.md §5
		}
		s.conn = ipc.NewConn(conn)
		s.mu.Unlock()
		go s.readControlLoop(s.conn)
	}
}

func (s *Slot) readControlLoop(c *ipc.Conn) {
	for {
		env, err := c.Recv()
		if err != nil {
			return
		}
		if env.Type != ipc.TypePreviewControl {
			continue
		}
		var ctrl ipc.PreviewControl
		if err := json.Unmarshal(env.Payload, &ctrl); err != nil {
			log.Warn("preview control decode failed", "slot", s.name, logging.KeyError, err)
			continue
		}
		select {
		case s.control <- ctrl:
		default:
			log.Warn("preview control channel full, dropping", "slot", s.name)
		}
	}
}

// PutFrame submits a frame for mirroring. Never blocks: if the viewer
// hasn't drained the previous frame yet, it is replaced.
func (s *Slot) PutFrame(f frame.Frame) {
	select {
	case s.latest <- f:
	default:
		select {
		case <-s.latest:
		default:
		}
		s.latest <- f
	}
}

func (s *Slot) writeLoop() {
	for {
		select {
		case f := <-s.latest:
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()
			if conn == nil {
				continue
			}
			payload := ipc.FramePayload{
				Width:  f.Width,
				Height: f.Height,
				Seq:    s.seq.Add(1),
				Pixels: ipc.AppendSentinel(f.Pixels),
			}
			if err := conn.SendTyped(s.name, ipc.TypePreviewFrame, payload); err != nil {
				log.Debug("preview frame send failed, viewer likely disconnected", "slot", s.name, logging.KeyError, err)
			}
		case <-s.done:
			return
		}
	}
}

// Control returns the channel of key-press feedback from the viewer
// (spec.md §4.8's stop/toggle_preview/toggle_text flags).
func (s *Slot) Control() <-chan ipc.PreviewControl { return s.control }

// Close tears down the slot (spec.md §4.9 Closing: "destroy preview slot").
func (s *Slot) Close() error {
	close(s.done)
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
	return s.listener.Close()
}
