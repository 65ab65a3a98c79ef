package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidateResult separates BadConfig (spec.md §7) into two tiers: Fatals
// block a cast from ever entering Opening, Warnings are logged but the
// value is clamped to a safe default so the daemon still starts.
type ValidateResult struct {
	Fatals   []error
	Warnings []error
}

func (r *ValidateResult) HasFatals() bool { return len(r.Fatals) > 0 }

func (r *ValidateResult) fatal(format string, args ...any) {
	r.Fatals = append(r.Fatals, fmt.Errorf(format, args...))
}

func (r *ValidateResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Errorf(format, args...))
}

var validProtocols = map[string]bool{"ddp": true, "e131": true, "artnet": true, "other": true}
var validKinds = map[string]bool{"desktop": true, "media": true}
var validSinks = map[string]bool{"none": true, "local": true, "s3": true, "azureblob": true, "gcs": true, "b2": true, "device": true}

// ValidateTiered validates daemon-level settings and every configured cast
// against the spec.md §3 Cast invariants and §6 range constraints.
func (c *Config) ValidateTiered() *ValidateResult {
	r := &ValidateResult{}

	if c.QueueDepth < 1 {
		r.warn("queue_depth %d is below minimum 1, clamping", c.QueueDepth)
		c.QueueDepth = 1
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.warn("log_format %q is not valid (use text or json)", c.LogFormat)
		c.LogFormat = "text"
	}

	seen := make(map[string]bool)
	for i := range c.Casts {
		cast := &c.Casts[i]
		if cast.Name == "" {
			r.fatal("casts[%d]: name is required", i)
			continue
		}
		if seen[cast.Name] {
			r.fatal("casts[%d]: duplicate cast name %q", i, cast.Name)
		}
		seen[cast.Name] = true
		validateCast(cast, r, c)
	}

	return r
}

func validateCast(cast *CastConfig, r *ValidateResult, defaults *Config) {
	if cast.Kind == "" {
		cast.Kind = "desktop"
	}
	if !validKinds[strings.ToLower(cast.Kind)] {
		r.fatal("cast %q: kind %q must be desktop or media", cast.Name, cast.Kind)
	}

	if cast.RateFPS == 0 {
		cast.RateFPS = defaults.DefaultRateFPS
	}
	if cast.RateFPS < 1 || cast.RateFPS > 60 {
		r.fatal("cast %q: rate %d out of range 1..60", cast.Name, cast.RateFPS)
	}

	if cast.ScaleWidth == 0 {
		cast.ScaleWidth = defaults.DefaultScaleWidth
	}
	if cast.ScaleHeight == 0 {
		cast.ScaleHeight = defaults.DefaultScaleHeight
	}
	if cast.ScaleWidth < 1 || cast.ScaleWidth > 1920 {
		r.fatal("cast %q: scale_width %d out of range 1..1920", cast.Name, cast.ScaleWidth)
	}
	if cast.ScaleHeight < 1 || cast.ScaleHeight > 1080 {
		r.fatal("cast %q: scale_height %d out of range 1..1080", cast.Name, cast.ScaleHeight)
	}

	proto := strings.ToLower(cast.Protocol)
	if proto == "" {
		proto = "ddp"
		cast.Protocol = proto
	}
	if !validProtocols[proto] {
		r.fatal("cast %q: protocol %q must be one of ddp, e131, artnet, other", cast.Name, cast.Protocol)
	}

	destinations := cast.destinations()
	if len(destinations) == 0 {
		r.fatal("cast %q: destinations must be non-empty", cast.Name)
	}
	for _, d := range destinations {
		if ip := net.ParseIP(d); ip == nil || ip.To4() == nil {
			r.fatal("cast %q: destination %q is not a valid IPv4 address", cast.Name, d)
		}
	}

	if cast.TileX < 1 {
		cast.TileX = 1
	}
	if cast.TileY < 1 {
		cast.TileY = 1
	}
	tileCount := cast.TileX * cast.TileY
	if cast.Multicast && tileCount > 1 && len(destinations) != tileCount {
		// §4.6 / Open Questions: replicate when tile_x==tile_y==1, otherwise
		// the destination count must equal the tile count exactly.
		r.fatal("cast %q: multicast tile grid %dx%d requires exactly %d destinations, got %d",
			cast.Name, cast.TileX, cast.TileY, tileCount, len(destinations))
	}

	if cast.Retry < 0 {
		r.warn("cast %q: retry %d is negative, clamping to 0", cast.Name, cast.Retry)
		cast.Retry = 0
	}

	if cast.Filters.Gamma == 0 {
		cast.Filters.Gamma = 1.0
	}
	if cast.Filters.Gamma < 0.01 || cast.Filters.Gamma > 4 {
		r.fatal("cast %q: gamma %v out of range 0.01..4", cast.Name, cast.Filters.Gamma)
	}
	for _, kv := range []struct {
		name string
		val  int
	}{
		{"saturation", cast.Filters.Saturation},
		{"brightness", cast.Filters.Brightness},
		{"contrast", cast.Filters.Contrast},
		{"sharpen", cast.Filters.Sharpen},
	} {
		if kv.val < 0 || kv.val > 100 {
			r.fatal("cast %q: %s %d out of range 0..100", cast.Name, kv.name, kv.val)
		}
	}
	for _, kv := range []struct {
		name string
		val  int
	}{
		{"balance_red", cast.Filters.BalanceRed},
		{"balance_green", cast.Filters.BalanceGreen},
		{"balance_blue", cast.Filters.BalanceBlue},
	} {
		if kv.val < 0 || kv.val > 255 {
			r.fatal("cast %q: %s %d out of range 0..255", cast.Name, kv.name, kv.val)
		}
	}

	if cast.FrameMax == 0 {
		cast.FrameMax = 10
	}
	if cast.FrameMax < 1 || cast.FrameMax > 30 {
		r.fatal("cast %q: frame_max %d out of range 1..30", cast.Name, cast.FrameMax)
	}

	if cast.Record.Enabled {
		sink := strings.ToLower(cast.Record.Sink)
		if !validSinks[sink] {
			r.fatal("cast %q: record_sink %q is not valid", cast.Name, cast.Record.Sink)
		}
		if cast.Record.SegmentSeconds <= 0 {
			cast.Record.SegmentSeconds = 30
		}
	}

	if cast.Protocol == "e131" {
		if cast.E131.Universe < 0 || cast.E131.Universe > 63999 {
			r.fatal("cast %q: universe %d out of range 0..63999", cast.Name, cast.E131.Universe)
		}
		if cast.E131.ChannelsPerPixel == 0 {
			cast.E131.ChannelsPerPixel = 3
		}
		if cast.E131.ChannelsPerPixel != 3 && cast.E131.ChannelsPerPixel != 4 {
			r.fatal("cast %q: channels_per_pixel must be 3 or 4", cast.Name)
		}
		if cast.E131.PacketPriority < 0 || cast.E131.PacketPriority > 200 {
			r.fatal("cast %q: packet_priority %d out of range 0..200", cast.Name, cast.E131.PacketPriority)
		}
	}
}

// destinations returns the ordered destination list: Host first (if set),
// followed by any explicit cast_devices, matching the original's
// "destinations[0] is the primary host" convention used by the `host`
// Action (spec.md §4.7).
func (c *CastConfig) destinations() []string {
	var out []string
	if c.Host != "" {
		out = append(out, c.Host)
	}
	for _, d := range c.Devices {
		out = append(out, d.Addr)
	}
	return out
}

// Destinations exposes the computed destination list for callers outside
// this package (the cast controller, the tile splitter).
func (c *CastConfig) Destinations() []string {
	return c.destinations()
}
