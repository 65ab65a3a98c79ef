// Package websocket implements the control surface (C13): a WebSocket
// endpoint that translates JSON command frames into action.Registry
// entries and pushes back cast state/info events, optionally behind mTLS.
package websocket

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ledcast/caster/internal/action"
	"github.com/ledcast/caster/internal/cast"
	"github.com/ledcast/caster/internal/ipc"
	"github.com/ledcast/caster/internal/logging"
)

var log = logging.L("websocket")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Command is one inbound control frame: an action verb addressed to a
// named cast, the same shape the file-based todo list accepts (spec.md
// §4.7), carried over JSON instead of `name||verb||params||ts` lines.
type Command struct {
	Cast   string `json:"cast"`
	Verb   string `json:"verb"`
	Params string `json:"params"`
}

// Event is one outbound frame: a cast's Stats snapshot, its last published
// info snapshot, or an error. Events are sent only in reply to a command on
// the same connection; a cast's state transitions are not pushed.
type Event struct {
	Type         string             `json:"type"` // "stats" | "info" | "error"
	Cast         string             `json:"cast,omitempty"`
	Stats        *cast.Snapshot     `json:"stats,omitempty"`
	Info         *cast.InfoSnapshot `json:"info,omitempty"`
	Destinations []string           `json:"destinations,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Controller is the subset of *cast.Controller the control surface needs,
// kept narrow so this package doesn't import the full cast API surface.
type Controller interface {
	Actions() *action.Registry
	Get(name string) (*cast.Cast, bool)
	List() []cast.Snapshot
}

// Server is the C13 control surface: one upgrader, one set of live
// connections, one shared rate limiter guarding the upgrade path against a
// misbehaving client hammering reconnects.
type Server struct {
	ctl      Controller
	upgrader websocket.Upgrader
	limiter  *ipc.RateLimiter

	httpSrv *http.Server

	mu    sync.Mutex
	conns map[*conn]struct{}
}

// New builds a control surface bound to ctl. Actions enqueued over the
// wire land in ctl.Actions(), same registry the cast controller drains
// between frames.
func New(ctl Controller) *Server {
	return &Server{
		ctl:     ctl,
		limiter: ipc.NewRateLimiter(10, time.Minute),
		conns:   make(map[*conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Start begins serving the control surface on addr and blocks until Close
// is called or the listener fails. If tlsConfig is non-nil (built by
// internal/mtls.BuildServerTLSConfig) the listener serves HTTPS/WSS,
// optionally requiring client certs; a nil tlsConfig serves plain HTTP/WS,
// appropriate only on a trusted LAN.
func (s *Server) Start(addr string, tlsConfig *tls.Config) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/control", s.handleUpgrade)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux, TLSConfig: tlsConfig}

	log.Info("control surface listening", "addr", addr, "tls", tlsConfig != nil)
	var err error
	if tlsConfig != nil {
		err = s.httpSrv.ListenAndServeTLS("", "")
	} else {
		err = s.httpSrv.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts down the HTTP listener and every live connection.
func (s *Server) Close() error {
	s.mu.Lock()
	for c := range s.conns {
		c.close()
	}
	s.mu.Unlock()

	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(r.RemoteAddr) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("control surface upgrade failed", logging.KeyError, err)
		return
	}

	c := &conn{
		srv:  s,
		ws:   wsConn,
		send: make(chan Event, sendBuffer),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	go c.writePump()
	c.readPump()
}

func (s *Server) removeConn(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// conn is one control-surface client connection.
type conn struct {
	srv  *Server
	ws   *websocket.Conn
	send chan Event
	once sync.Once
	done chan struct{}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (c *conn) readPump() {
	defer func() {
		c.srv.removeConn(c)
		c.close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("control surface read error", logging.KeyError, err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.sendEvent(Event{Type: "error", Error: fmt.Sprintf("malformed command: %v", err)})
			continue
		}
		c.handleCommand(cmd)
	}
}

func (c *conn) handleCommand(cmd Command) {
	// "list" addresses the whole controller, not one cast, so it's exempt
	// from the cast-name requirement below.
	if cmd.Verb == "list" {
		for _, snap := range c.srv.ctl.List() {
			snap := snap
			var dests []string
			if cs, ok := c.srv.ctl.Get(snap.Name); ok {
				dests = cs.Destinations()
			}
			c.sendEvent(Event{Type: "stats", Cast: snap.Name, Stats: &snap, Destinations: dests})
		}
		return
	}

	if cmd.Cast == "" || cmd.Verb == "" {
		c.sendEvent(Event{Type: "error", Error: "command requires cast and verb"})
		return
	}

	entry := fmt.Sprintf("%s||%s||%s||%d", cmd.Cast, cmd.Verb, cmd.Params, time.Now().Unix())
	c.srv.ctl.Actions().Enqueue(entry)

	if cs, ok := c.srv.ctl.Get(cmd.Cast); ok {
		snap := cs.Stats()
		c.sendEvent(Event{Type: "stats", Cast: cmd.Cast, Stats: &snap})
		if info := cs.LastInfo(); info != nil {
			c.sendEvent(Event{Type: "info", Cast: cmd.Cast, Info: info})
		}
	} else {
		c.sendEvent(Event{Type: "error", Cast: cmd.Cast, Error: "no such cast"})
	}
}

func (c *conn) sendEvent(e Event) {
	select {
	case c.send <- e:
	default:
		log.Warn("control surface connection send buffer full, dropping event")
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case e := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(e); err != nil {
				log.Warn("control surface write error", logging.KeyError, err)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
