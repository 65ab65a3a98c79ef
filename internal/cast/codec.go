package cast

import (
	"crypto/md5"
	"fmt"
	"strings"

	"github.com/ledcast/caster/internal/config"
	"github.com/ledcast/caster/internal/frame"
	"github.com/ledcast/caster/internal/wire"
)

// newCodec builds a fresh wire.Codec instance for one destination. Every
// destination gets its own instance — DDP/E1.31/Art-Net codecs carry a
// mutable sequence counter, and the send queue's one-worker-per-device
// model means that state must never be shared across devices.
func newCodec(cfg config.CastConfig) (wire.Codec, error) {
	switch strings.ToLower(cfg.Protocol) {
	case "", "ddp", "other":
		return wire.NewDDP(), nil
	case "e131":
		return wire.NewE131(cfg.E131.Name, cfg.E131.Universe, cfg.E131.PacketPriority, cfg.E131.ChannelsPerPixel, cfg.E131.UniverseSize, cidFor(cfg.Name)), nil
	case "artnet":
		return wire.NewArtnet(cfg.E131.Universe), nil
	default:
		return nil, fmt.Errorf("unsupported protocol %q", cfg.Protocol)
	}
}

// cidFor derives a deterministic 16-byte E1.31 source CID from the cast
// name, so the same cast always advertises the same identity across
// restarts without needing a persisted UUID.
func cidFor(castName string) [16]byte {
	return md5.Sum([]byte("ledcast/" + castName))
}

// estimatePackets returns the number of UDP datagrams one tick is expected
// to produce across destinationCount destinations, for the cast's own
// Stats.TotalPackets counter (spec.md §3). This mirrors each codec's
// chunking arithmetic without touching the codec's own sequence state —
// it's a pure size calculation, safe to call from the hot loop.
func estimatePackets(cfg config.CastConfig, f frame.Frame, destinationCount int) uint64 {
	perDest := 1
	switch strings.ToLower(cfg.Protocol) {
	case "", "ddp", "other":
		perDest = ceilDiv(len(f.Pixels), 1440)
	case "e131":
		channelsPerPixel := cfg.E131.ChannelsPerPixel
		if channelsPerPixel == 0 {
			channelsPerPixel = 3
		}
		universeSize := cfg.E131.UniverseSize
		if universeSize <= 0 {
			universeSize = 512
		}
		pixels := len(f.Pixels) / 3
		perDest = ceilDiv(pixels*channelsPerPixel, universeSize)
	case "artnet":
		perDest = ceilDiv(len(f.Pixels), 512)
	}
	if perDest < 1 {
		perDest = 1
	}
	return uint64(perDest * destinationCount)
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
