package wire

import (
	"testing"

	"github.com/ledcast/caster/internal/frame"
)

func solidFrame(w, h int, r, g, b byte) frame.Frame {
	px := make([]byte, w*h*3)
	for i := 0; i < w*h; i++ {
		px[i*3], px[i*3+1], px[i*3+2] = r, g, b
	}
	f, err := frame.New(w, h, px, 1)
	if err != nil {
		panic(err)
	}
	return f
}

func TestDDPEncodeChunksAndSetsPush(t *testing.T) {
	f := solidFrame(40, 40, 10, 20, 30) // 1600 px * 3 = 4800 bytes, needs 4 packets of 1440/1440/1440/480
	c := NewDDP()
	pkts := c.Encode(f)

	if len(pkts) != 4 {
		t.Fatalf("expected 4 packets, got %d", len(pkts))
	}
	for i, pkt := range pkts {
		flags, seq, typ, source, offset, payload, ok := DecodeDDP(pkt)
		if !ok {
			t.Fatalf("packet %d: failed to decode", i)
		}
		if seq != 1 {
			t.Fatalf("packet %d: expected seq 1, got %d", i, seq)
		}
		if typ != ddpType || source != ddpSource {
			t.Fatalf("packet %d: unexpected type/source %d/%d", i, typ, source)
		}
		wantOffset := uint32(i * ddpMaxPayload)
		if offset != wantOffset {
			t.Fatalf("packet %d: expected offset %d, got %d", i, wantOffset, offset)
		}
		isLast := i == len(pkts)-1
		if IsPush(flags) != isLast {
			t.Fatalf("packet %d: push bit = %v, want %v", i, IsPush(flags), isLast)
		}
		if isLast && len(payload) != 480 {
			t.Fatalf("expected final chunk of 480 bytes, got %d", len(payload))
		} else if !isLast && len(payload) != ddpMaxPayload {
			t.Fatalf("expected full chunk of %d bytes, got %d", ddpMaxPayload, len(payload))
		}
	}
}

func TestDDPSequenceCyclesThrough15(t *testing.T) {
	c := NewDDP()
	f := solidFrame(1, 1, 1, 2, 3)

	var last byte
	for i := 0; i < 20; i++ {
		pkts := c.Encode(f)
		_, seq, _, _, _, _, ok := DecodeDDP(pkts[0])
		if !ok {
			t.Fatal("failed to decode packet")
		}
		if seq < 1 || seq > 15 {
			t.Fatalf("sequence %d out of range 1..15", seq)
		}
		last = seq
	}
	_ = last
}

func TestE131ChunksAcrossUniverses(t *testing.T) {
	f := solidFrame(20, 20, 5, 6, 7) // 400 px, 1200 bytes RGB, universeSize 510 -> 3 packets
	c := NewE131("test-source", 1, 100, 3, 510, [16]byte{})
	pkts := c.Encode(f)
	if len(pkts) != 3 {
		t.Fatalf("expected 3 universe packets, got %d", len(pkts))
	}
	for _, pkt := range pkts {
		if len(pkt) < e131HeaderLen {
			t.Fatalf("packet too short: %d bytes", len(pkt))
		}
	}
}

func TestArtnetChunksAt512Channels(t *testing.T) {
	f := solidFrame(20, 20, 1, 1, 1) // 1200 bytes -> 3 ArtDMX packets (512/512/176)
	c := NewArtnet(0)
	pkts := c.Encode(f)
	if len(pkts) != 3 {
		t.Fatalf("expected 3 packets, got %d", len(pkts))
	}
	if len(pkts[0]) != artnetHeaderLen+512 {
		t.Fatalf("expected first packet payload of 512 channels, got %d total bytes", len(pkts[0]))
	}
}

func TestDefaultPort(t *testing.T) {
	cases := map[string]int{"ddp": 4048, "e131": 5568, "artnet": 6454, "": 4048}
	for proto, want := range cases {
		if got := DefaultPort(proto); got != want {
			t.Errorf("DefaultPort(%q) = %d, want %d", proto, got, want)
		}
	}
}
