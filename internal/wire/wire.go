// Package wire implements the three UDP lighting-protocol codecs (C1):
// DDP, E1.31/sACN, and Art-Net. Each codec is stateless apart from its own
// sequence counter and never retains the Frame it encodes.
package wire

import "github.com/ledcast/caster/internal/frame"

// Packet is one encoded UDP datagram ready to hand to net.Conn.Write.
type Packet []byte

// Codec turns a Frame into the datagrams for one destination's wire format.
// Implementations are safe for use by a single goroutine at a time (the
// sequence counter is not synchronized) — the send queue (C2) owns exactly
// one worker per Device, so this is never shared across goroutines.
type Codec interface {
	// Encode returns the ordered list of packets for one frame. The last
	// packet in the slice is always the terminal ("push") packet.
	Encode(f frame.Frame) []Packet
	// Name identifies the protocol for logging ("ddp", "e131", "artnet").
	Name() string
}

// DefaultPort returns the well-known UDP port for a protocol name.
func DefaultPort(protocol string) int {
	switch protocol {
	case "ddp":
		return 4048
	case "e131":
		return 5568
	case "artnet":
		return 6454
	default:
		return 4048
	}
}
