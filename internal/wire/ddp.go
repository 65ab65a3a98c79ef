package wire

import (
	"encoding/binary"

	"github.com/ledcast/caster/internal/frame"
)

// DDP header layout (spec.md §4.1 / §6): 10 bytes —
// [flags][seq][type][source][offset_be32][len_be16] + payload.
const (
	ddpHeaderLen  = 10
	ddpMaxPixels  = 480
	ddpMaxPayload = ddpMaxPixels * 3 // 1440 bytes

	ddpFlagVer1 = 0x40
	ddpFlagPush = 0x01
	ddpType     = 0x01
	ddpSource   = 0x01
)

// DDPCodec encodes Frames as Distributed Display Protocol packets.
type DDPCodec struct {
	seq byte // cycles 1..15 per frame, constant across a frame's packets
}

// NewDDP returns a fresh DDP codec; the first frame gets sequence 1.
func NewDDP() *DDPCodec {
	return &DDPCodec{seq: 0}
}

func (c *DDPCodec) Name() string { return "ddp" }

// Encode splits the frame's RGB bytes into ≤1440-byte chunks, one DDP
// packet per chunk, with the PUSH flag set only on the final packet.
func (c *DDPCodec) Encode(f frame.Frame) []Packet {
	c.seq = c.seq%15 + 1
	data := f.Pixels

	numPackets := (len(data) + ddpMaxPayload - 1) / ddpMaxPayload
	if numPackets == 0 {
		numPackets = 1
	}
	packets := make([]Packet, 0, numPackets)

	for i := 0; i < numPackets; i++ {
		start := i * ddpMaxPayload
		end := start + ddpMaxPayload
		if end > len(data) {
			end = len(data)
		}
		last := i == numPackets-1
		packets = append(packets, encodeDDPPacket(c.seq, uint32(start), data[start:end], last))
	}
	return packets
}

func encodeDDPPacket(seq byte, offset uint32, payload []byte, last bool) Packet {
	flags := byte(ddpFlagVer1)
	if last {
		flags |= ddpFlagPush
	}

	pkt := make(Packet, ddpHeaderLen+len(payload))
	pkt[0] = flags
	pkt[1] = seq
	pkt[2] = ddpType
	pkt[3] = ddpSource
	binary.BigEndian.PutUint32(pkt[4:8], offset)
	binary.BigEndian.PutUint16(pkt[8:10], uint16(len(payload)))
	copy(pkt[ddpHeaderLen:], payload)
	return pkt
}

// DecodeDDP parses a raw DDP datagram back into its header fields and
// payload. Used by tests (and a mock receiver) to verify the round-trip
// property in spec.md §8.4.
func DecodeDDP(pkt []byte) (flags, seq, typ, source byte, offset uint32, payload []byte, ok bool) {
	if len(pkt) < ddpHeaderLen {
		return 0, 0, 0, 0, 0, nil, false
	}
	flags = pkt[0]
	seq = pkt[1]
	typ = pkt[2]
	source = pkt[3]
	offset = binary.BigEndian.Uint32(pkt[4:8])
	length := binary.BigEndian.Uint16(pkt[8:10])
	if len(pkt) < ddpHeaderLen+int(length) {
		return 0, 0, 0, 0, 0, nil, false
	}
	payload = pkt[ddpHeaderLen : ddpHeaderLen+int(length)]
	return flags, seq, typ, source, offset, payload, true
}

// IsPush reports whether the DDP flags byte has the PUSH (terminal) bit set.
func IsPush(flags byte) bool { return flags&ddpFlagPush != 0 }
