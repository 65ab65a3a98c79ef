package wire

import (
	"encoding/binary"

	"github.com/ledcast/caster/internal/frame"
)

// Art-Net (Art-Net 4) ArtDMX packet: 18-byte header + up to 512 channels.
const (
	artnetHeaderLen  = 18
	artnetMaxChannel = 512
	artnetOpDMX      = 0x5000
	artnetProtoVer   = 14
)

var artnetID = [8]byte{'A', 'r', 't', '-', 'N', 'e', 't', 0x00}

// ArtnetCodec encodes Frames as ArtDMX packets, chunking RGB pixels across
// consecutive universes (net/sub-net/universe packed per Art-Net 4 addressing).
type ArtnetCodec struct {
	startUniverse int
	seq           byte
}

// NewArtnet builds a codec starting at startUniverse (0-based, 15-bit
// net/sub-net/universe address per the Art-Net spec).
func NewArtnet(startUniverse int) *ArtnetCodec {
	return &ArtnetCodec{startUniverse: startUniverse}
}

func (c *ArtnetCodec) Name() string { return "artnet" }

// Encode slices the frame's RGB bytes into 512-channel ArtDMX packets, one
// universe per packet, incrementing the universe address for each chunk.
func (c *ArtnetCodec) Encode(f frame.Frame) []Packet {
	c.seq++
	data := f.Pixels

	var packets []Packet
	universe := c.startUniverse
	for start := 0; start < len(data); start += artnetMaxChannel {
		end := start + artnetMaxChannel
		if end > len(data) {
			end = len(data)
		}
		packets = append(packets, c.encodeUniverse(universe, data[start:end]))
		universe++
	}
	if len(packets) == 0 {
		packets = append(packets, c.encodeUniverse(universe, nil))
	}
	return packets
}

func (c *ArtnetCodec) encodeUniverse(universe int, channels []byte) Packet {
	length := len(channels)
	if length%2 != 0 {
		length++ // ArtDMX length must be even
	}
	pkt := make(Packet, artnetHeaderLen+length)

	copy(pkt[0:8], artnetID[:])
	binary.LittleEndian.PutUint16(pkt[8:10], artnetOpDMX) // OpCode is little-endian on the wire
	pkt[10] = 0                                            // protocol version hi
	pkt[11] = artnetProtoVer                                // protocol version lo
	pkt[12] = c.seq
	pkt[13] = 0 // physical port, informational
	binary.LittleEndian.PutUint16(pkt[14:16], uint16(universe)) // Sub-Net/Universe, little-endian
	binary.BigEndian.PutUint16(pkt[16:18], uint16(length))

	copy(pkt[artnetHeaderLen:], channels)
	return pkt
}
