// Package device implements the process-global Device registry (spec.md
// §3): a logical LED controller endpoint deduplicated by IP, each with its
// own send queue, UDP socket and wire codec. No two goroutines ever share a
// socket — the registry hands each caller the same *Device, but only the
// Device's own queue worker writes to its connection.
package device

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/ledcast/caster/internal/frame"
	"github.com/ledcast/caster/internal/logging"
	"github.com/ledcast/caster/internal/wire"
)

var log = logging.L("device")

// State mirrors spec.md §3's Device.state enum.
type State int

const (
	Unknown State = iota
	Online
	Warned
)

func (s State) String() string {
	switch s {
	case Online:
		return "online"
	case Warned:
		return "warned"
	default:
		return "unknown"
	}
}

// Device is a logical LED controller endpoint identified by IPv4.
type Device struct {
	Addr string
	Port int

	codec wire.Codec
	conn  net.Conn

	frameCount atomic.Uint64
	state      atomic.Int32

	mu sync.Mutex // guards warnedOnce transitions, not the hot send path
}

func newDevice(addr string, port int, codec wire.Codec) (*Device, error) {
	conn, err := net.Dial("udp4", fmt.Sprintf("%s:%d", addr, port))
	if err != nil {
		return nil, fmt.Errorf("device %s: dial: %w", addr, err)
	}
	d := &Device{Addr: addr, Port: port, codec: codec, conn: conn}
	d.state.Store(int32(Unknown))
	return d, nil
}

// State returns the device's current health state.
func (d *Device) State() State { return State(d.state.Load()) }

// FrameCount returns the number of frames successfully sent.
func (d *Device) FrameCount() uint64 { return d.frameCount.Load() }

// Send encodes one frame and writes every resulting packet, sending each
// datagram 1+retry times (spec.md §4.1). A datagram whose every write
// fails transitions the device to Warned and is logged once; the first
// success afterward transitions back to Online and logs recovery.
func (d *Device) Send(f frame.Frame, retry int) error {
	packets := d.codec.Encode(f)

	var lastErr error
	for _, pkt := range packets {
		lastErr = d.writeWithRetry(pkt, retry)
		if lastErr != nil {
			break
		}
	}

	if lastErr != nil {
		d.transitionTo(Warned, lastErr)
		return lastErr
	}

	d.frameCount.Add(1)
	d.transitionTo(Online, nil)
	return nil
}

func (d *Device) writeWithRetry(pkt wire.Packet, retry int) error {
	var lastErr error
	sent := false
	for attempt := 0; attempt <= retry; attempt++ {
		if _, err := d.conn.Write(pkt); err != nil {
			lastErr = err
		} else {
			sent = true
		}
	}
	if sent {
		return nil
	}
	return lastErr
}

func (d *Device) transitionTo(next State, cause error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := State(d.state.Load())
	if prev == next {
		return
	}
	d.state.Store(int32(next))

	switch next {
	case Warned:
		log.Warn("device transitioned to warned", logging.KeyDevice, d.Addr, logging.KeyError, cause)
	case Online:
		if prev == Warned {
			log.Info("device recovered", logging.KeyDevice, d.Addr)
		}
	}
}

// Close releases the device's UDP socket.
func (d *Device) Close() error {
	return d.conn.Close()
}

// Registry deduplicates Devices by IP across every cast in the process.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*Device
}

// NewRegistry returns an empty, ready-to-use registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*Device)}
}

// GetOrCreate returns the existing Device for addr, or dials a new one using
// codec/port. Safe for concurrent use from multiple casts opening at once.
func (r *Registry) GetOrCreate(addr string, port int, codec wire.Codec) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.devices[addr]; ok {
		return d, nil
	}
	d, err := newDevice(addr, port, codec)
	if err != nil {
		return nil, err
	}
	r.devices[addr] = d
	log.Info("registered device", logging.KeyDevice, addr, "port", port, "protocol", codec.Name())
	return d, nil
}

// All returns a snapshot of every registered Device, for status reporting.
func (r *Registry) All() []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	return out
}
