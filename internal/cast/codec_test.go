package cast

import (
	"testing"

	"github.com/ledcast/caster/internal/config"
	"github.com/ledcast/caster/internal/frame"
)

func TestNewCodecDispatchesByProtocol(t *testing.T) {
	cases := []struct {
		protocol string
		wantName string
	}{
		{"", "ddp"},
		{"ddp", "ddp"},
		{"DDP", "ddp"},
		{"other", "ddp"},
		{"e131", "e131"},
		{"artnet", "artnet"},
	}
	for _, tc := range cases {
		c, err := newCodec(config.CastConfig{Name: "test", Protocol: tc.protocol})
		if err != nil {
			t.Fatalf("newCodec(%q): %v", tc.protocol, err)
		}
		if c.Name() != tc.wantName {
			t.Fatalf("protocol %q: expected codec %q, got %q", tc.protocol, tc.wantName, c.Name())
		}
	}
}

func TestNewCodecRejectsUnknownProtocol(t *testing.T) {
	if _, err := newCodec(config.CastConfig{Protocol: "bogus"}); err == nil {
		t.Fatal("expected error for unknown protocol")
	}
}

func TestCidForIsDeterministic(t *testing.T) {
	a := cidFor("studio-wall")
	b := cidFor("studio-wall")
	c := cidFor("other-cast")
	if a != b {
		t.Fatal("expected the same cast name to produce the same CID")
	}
	if a == c {
		t.Fatal("expected different cast names to produce different CIDs")
	}
}

func TestEstimatePacketsDDP(t *testing.T) {
	cfg := config.CastConfig{Protocol: "ddp"}
	f := frame.Blank(64, 32, 1) // 64*32*3 = 6144 bytes -> ceil(6144/1440) = 5 packets
	got := estimatePackets(cfg, f, 2)
	if got != 10 {
		t.Fatalf("expected 10 packets across 2 destinations, got %d", got)
	}
}

func TestEstimatePacketsE131ChunksByUniverseSize(t *testing.T) {
	cfg := config.CastConfig{
		Protocol: "e131",
		E131:     config.E131Config{ChannelsPerPixel: 3, UniverseSize: 170 * 3},
	}
	f := frame.Blank(17, 10, 1) // 170 pixels exactly -> one universe
	got := estimatePackets(cfg, f, 1)
	if got != 1 {
		t.Fatalf("expected 1 packet for an exact-fit universe, got %d", got)
	}

	f2 := frame.Blank(18, 10, 1) // 180 pixels -> spills into a second universe
	got2 := estimatePackets(cfg, f2, 1)
	if got2 != 2 {
		t.Fatalf("expected 2 packets once pixel count exceeds one universe, got %d", got2)
	}
}
