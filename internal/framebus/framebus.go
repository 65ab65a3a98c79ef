// Package framebus implements the shared frame bus (C10, spec.md §4.10): a
// process-wide registry mapping name -> frame slot, so an external producer
// process (e.g. a second process rendering text) can feed a cast whose
// source is `queue` without either process needing to know about the
// other's internals. Built on internal/ipc's Conn, grounded on the same
// "shared-memory replacement" transport decision as internal/preview.
package framebus

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ledcast/caster/internal/frame"
	"github.com/ledcast/caster/internal/ipc"
	"github.com/ledcast/caster/internal/logging"
)

var log = logging.L("framebus")

type slot struct {
	width, height int
	mu            sync.Mutex
	latest        frame.Frame
	hasFrame      bool
	updatedAt     time.Time
}

// Server owns the registry and serves Conn-based requests from producer and
// consumer processes over a single TCP loopback listener.
type Server struct {
	listener net.Listener

	mu    sync.Mutex
	slots map[string]*slot
}

// Listen starts the bus server at addr ("127.0.0.1:0" picks a free port).
func Listen(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{listener: ln, slots: make(map[string]*slot)}
	go s.acceptLoop()
	return s, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() string { return s.listener.Addr().String() }

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.serve(ipc.NewConn(conn))
	}
}

func (s *Server) serve(c *ipc.Conn) {
	defer c.Close()
	for {
		env, err := c.Recv()
		if err != nil {
			return
		}
		s.handle(c, env)
	}
}

func (s *Server) handle(c *ipc.Conn, env *ipc.Envelope) {
	switch env.Type {
	case ipc.TypeBusCreate:
		var req ipc.BusCreateRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			c.SendError(env.ID, env.Type, err.Error())
			return
		}
		s.create(req.Name, req.Width, req.Height)
		c.SendTyped(env.ID, ipc.TypeBusInfo, ipc.BusInfoResponse{Exists: true, Width: req.Width, Height: req.Height})

	case ipc.TypeBusDelete:
		var req ipc.BusCreateRequest
		json.Unmarshal(env.Payload, &req)
		s.delete(req.Name)
		c.SendTyped(env.ID, ipc.TypeBusInfo, ipc.BusInfoResponse{})

	case ipc.TypeBusList:
		c.SendTyped(env.ID, ipc.TypeBusList, ipc.BusListResponse{Names: s.list()})

	case ipc.TypeBusInfo:
		var req ipc.BusCreateRequest
		json.Unmarshal(env.Payload, &req)
		w, h, ok := s.info(req.Name)
		c.SendTyped(env.ID, ipc.TypeBusInfo, ipc.BusInfoResponse{Exists: ok, Width: w, Height: h})

	case ipc.TypeBusPut:
		var payload ipc.FramePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			c.SendError(env.ID, env.Type, err.Error())
			return
		}
		pixels, ok := ipc.StripSentinel(payload.Pixels)
		if !ok {
			c.SendError(env.ID, env.Type, "missing sentinel byte")
			return
		}
		f, err := frame.New(payload.Width, payload.Height, pixels, payload.Seq)
		if err != nil {
			c.SendError(env.ID, env.Type, err.Error())
			return
		}
		s.put(payload.Name, f)
		c.SendTyped(env.ID, ipc.TypeBusPut, ipc.BusInfoResponse{Exists: true})

	case ipc.TypeBusGet:
		var req ipc.BusCreateRequest
		json.Unmarshal(env.Payload, &req)
		f, updatedAt, ok := s.get(req.Name)
		if !ok {
			c.SendError(env.ID, env.Type, "no frame available")
			return
		}
		c.SendTyped(env.ID, ipc.TypeBusGet, ipc.FramePayload{
			Width: f.Width, Height: f.Height, Seq: f.Seq, Pixels: ipc.AppendSentinel(f.Pixels),
			UpdatedAtUnixMilli: updatedAt.UnixMilli(),
		})

	default:
		log.Warn("unknown bus message type", "type", env.Type)
	}
}

func (s *Server) create(name string, w, h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[name] = &slot{width: w, height: h}
	log.Info("bus slot created", "name", name, "width", w, "height", h)
}

func (s *Server) delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, name)
}

func (s *Server) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.slots))
	for name := range s.slots {
		out = append(out, name)
	}
	return out
}

func (s *Server) info(name string) (w, h int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, found := s.slots[name]
	if !found {
		return 0, 0, false
	}
	return sl.width, sl.height, true
}

func (s *Server) put(name string, f frame.Frame) {
	s.mu.Lock()
	sl, ok := s.slots[name]
	s.mu.Unlock()
	if !ok {
		return
	}
	sl.mu.Lock()
	sl.latest = f
	sl.hasFrame = true
	sl.updatedAt = time.Now()
	sl.mu.Unlock()
}

func (s *Server) get(name string) (frame.Frame, time.Time, bool) {
	s.mu.Lock()
	sl, ok := s.slots[name]
	s.mu.Unlock()
	if !ok {
		return frame.Frame{}, time.Time{}, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if !sl.hasFrame {
		return frame.Frame{}, time.Time{}, false
	}
	return sl.latest, sl.updatedAt, true
}

// Close stops accepting new connections.
func (s *Server) Close() error { return s.listener.Close() }

// Client is a thin wrapper a producer or consumer process uses to talk to a
// running Server.
type Client struct {
	conn *ipc.Conn
	seq  int
}

// Dial connects to a bus server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: ipc.NewConn(conn)}, nil
}

func (c *Client) nextID() string {
	c.seq++
	return fmt.Sprintf("req-%d", c.seq)
}

// Create allocates a named slot.
func (c *Client) Create(name string, w, h int) error {
	id := c.nextID()
	if err := c.conn.SendTyped(id, ipc.TypeBusCreate, ipc.BusCreateRequest{Name: name, Width: w, Height: h}); err != nil {
		return err
	}
	_, err := c.conn.Recv()
	return err
}

// Attach is an alias for Info used by consumers to confirm a slot exists
// and read its shape before polling Get (spec.md §4.10's `attach`).
func (c *Client) Attach(name string) (w, h int, err error) {
	return c.Info(name)
}

// Info reads a slot's shape.
func (c *Client) Info(name string) (w, h int, err error) {
	id := c.nextID()
	if err := c.conn.SendTyped(id, ipc.TypeBusInfo, ipc.BusCreateRequest{Name: name}); err != nil {
		return 0, 0, err
	}
	env, err := c.conn.Recv()
	if err != nil {
		return 0, 0, err
	}
	var resp ipc.BusInfoResponse
	if err := json.Unmarshal(env.Payload, &resp); err != nil {
		return 0, 0, err
	}
	if !resp.Exists {
		return 0, 0, fmt.Errorf("framebus: slot %q does not exist", name)
	}
	return resp.Width, resp.Height, nil
}

// Delete removes a slot.
func (c *Client) Delete(name string) error {
	id := c.nextID()
	if err := c.conn.SendTyped(id, ipc.TypeBusDelete, ipc.BusCreateRequest{Name: name}); err != nil {
		return err
	}
	_, err := c.conn.Recv()
	return err
}

// List enumerates every live slot name.
func (c *Client) List() ([]string, error) {
	id := c.nextID()
	if err := c.conn.SendTyped(id, ipc.TypeBusList, struct{}{}); err != nil {
		return nil, err
	}
	env, err := c.conn.Recv()
	if err != nil {
		return nil, err
	}
	var resp ipc.BusListResponse
	if err := json.Unmarshal(env.Payload, &resp); err != nil {
		return nil, err
	}
	return resp.Names, nil
}

// Put pushes a frame into a named slot (the producer side).
func (c *Client) Put(name string, f frame.Frame) error {
	id := c.nextID()
	payload := ipc.FramePayload{Name: name, Width: f.Width, Height: f.Height, Seq: f.Seq, Pixels: ipc.AppendSentinel(f.Pixels)}
	if err := c.conn.SendTyped(id, ipc.TypeBusPut, payload); err != nil {
		return err
	}
	_, err := c.conn.Recv()
	return err
}

// Get polls the latest frame from a named slot (the consumer side, used by
// internal/source's ExternalQueue adapter). updatedAt is the producer's
// last-write wall-clock time, used for the 2s writer-silence check.
func (c *Client) Get(name string) (f frame.Frame, updatedAt time.Time, err error) {
	id := c.nextID()
	if err := c.conn.SendTyped(id, ipc.TypeBusGet, ipc.BusCreateRequest{Name: name}); err != nil {
		return frame.Frame{}, time.Time{}, err
	}
	env, err := c.conn.Recv()
	if err != nil {
		return frame.Frame{}, time.Time{}, err
	}
	var payload ipc.FramePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return frame.Frame{}, time.Time{}, err
	}
	pixels, ok := ipc.StripSentinel(payload.Pixels)
	if !ok {
		return frame.Frame{}, time.Time{}, fmt.Errorf("framebus: missing sentinel byte")
	}
	f, err = frame.New(payload.Width, payload.Height, pixels, payload.Seq)
	return f, time.UnixMilli(payload.UpdatedAtUnixMilli), err
}

// Close closes the client connection.
func (c *Client) Close() error { return c.conn.Close() }
