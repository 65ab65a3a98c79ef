package wire

import (
	"encoding/binary"

	"github.com/ledcast/caster/internal/frame"
)

// E1.31 (sACN, ANSI E1.31-2018) root/frame/DMP layer layout, fixed fields
// only — ACN vectors and CID are constant for every packet this codec
// emits. universeSize caps at 512 channels; this module only ever uses
// channelsPerPixel*pixelCount <= universeSize, chunked across consecutive
// universes when the cast has more pixels than one universe holds.
const (
	e131RootLen        = 16
	e131FrameLen       = 77
	e131DMPHeaderLen   = 10
	e131HeaderLen      = e131RootLen + e131FrameLen + e131DMPHeaderLen
	e131MaxUniverseLen = 512
	e131VectorRoot     = 0x00000004
	e131VectorFrame    = 0x00000002
	e131VectorDMPSet   = 0x02
)

// E131Codec encodes Frames as sACN DMX-over-Ethernet packets, chunking
// pixels across one or more consecutive universes.
type E131Codec struct {
	sourceName       string
	startUniverse    int
	priority         int
	channelsPerPixel int
	universeSize     int // channels available per universe, <=512
	seq              byte
	cid              [16]byte
}

// NewE131 builds a codec for one cast. universeSize lets a cast use fewer
// than 512 channels per universe (e.g. to align with a fixed pixel count
// per universe) while channelsPerPixel selects RGB (3) or RGBW (4).
func NewE131(sourceName string, startUniverse, priority, channelsPerPixel, universeSize int, cid [16]byte) *E131Codec {
	if channelsPerPixel != 4 {
		channelsPerPixel = 3
	}
	if universeSize <= 0 || universeSize > e131MaxUniverseLen {
		universeSize = e131MaxUniverseLen
	}
	return &E131Codec{
		sourceName:       sourceName,
		startUniverse:    startUniverse,
		priority:         priority,
		channelsPerPixel: channelsPerPixel,
		universeSize:     universeSize,
		cid:              cid,
	}
}

func (c *E131Codec) Name() string { return "e131" }

// Encode converts the frame's RGB24 bytes into the configured channel
// layout (dropping or padding the W channel as needed) and slices the
// result into one packet per universe, advancing the universe number by
// one for every universeSize/channelsPerPixel pixels.
func (c *E131Codec) Encode(f frame.Frame) []Packet {
	c.seq++

	channelData := toChannelData(f.Pixels, c.channelsPerPixel)

	var packets []Packet
	universe := c.startUniverse
	for start := 0; start < len(channelData); start += c.universeSize {
		end := start + c.universeSize
		if end > len(channelData) {
			end = len(channelData)
		}
		packets = append(packets, c.encodeUniverse(universe, channelData[start:end]))
		universe++
	}
	return packets
}

func toChannelData(rgb []byte, channelsPerPixel int) []byte {
	if channelsPerPixel == 3 {
		return rgb
	}
	pixels := len(rgb) / 3
	out := make([]byte, pixels*4)
	for i := 0; i < pixels; i++ {
		copy(out[i*4:i*4+3], rgb[i*3:i*3+3])
		out[i*4+3] = 0 // no dedicated white channel from an RGB24 source
	}
	return out
}

func (c *E131Codec) encodeUniverse(universe int, slot []byte) Packet {
	propertyCount := len(slot) + 1 // DMX start code + data
	pkt := make(Packet, e131HeaderLen+propertyCount)

	// Root Layer
	binary.BigEndian.PutUint16(pkt[0:2], 0x0010)                       // preamble size
	binary.BigEndian.PutUint16(pkt[2:4], 0x0000)                       // postamble size
	copy(pkt[4:16], []byte("ASC-E1.17\x00\x00\x00"))                   // ACN packet identifier (12 bytes)
	binary.BigEndian.PutUint16(pkt[16:18], flagsAndLength(uint16(len(pkt)-16)))
	binary.BigEndian.PutUint32(pkt[18:22], e131VectorRoot)
	copy(pkt[22:38], c.cid[:])

	// Framing Layer
	fr := pkt[e131RootLen:]
	binary.BigEndian.PutUint16(fr[0:2], flagsAndLength(uint16(len(pkt)-e131RootLen-2)))
	binary.BigEndian.PutUint32(fr[2:6], e131VectorFrame)
	copyPadded(fr[6:70], []byte(c.sourceName))
	fr[70] = byte(c.priority)
	binary.BigEndian.PutUint16(fr[71:73], 0) // sync address: unused
	fr[73] = c.seq
	fr[74] = 0 // options
	binary.BigEndian.PutUint16(fr[75:77], uint16(universe))

	// DMP Layer
	dmp := fr[e131FrameLen:]
	binary.BigEndian.PutUint16(dmp[0:2], flagsAndLength(uint16(len(dmp))))
	dmp[2] = e131VectorDMPSet
	dmp[3] = 0xa1 // address type & data type
	binary.BigEndian.PutUint16(dmp[4:6], 0)    // first property address
	binary.BigEndian.PutUint16(dmp[6:8], 1)    // address increment
	binary.BigEndian.PutUint16(dmp[8:10], uint16(propertyCount))
	dmp[10] = 0 // DMX start code
	copy(dmp[11:], slot)

	return pkt
}

func flagsAndLength(length uint16) uint16 {
	return 0x7000 | (length & 0x0fff)
}

func copyPadded(dst, src []byte) {
	n := copy(dst, src)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}
