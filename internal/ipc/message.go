package ipc

import "encoding/json"

// Message type constants for the preview channel (C8) and shared frame bus
// (C10) protocols, both built on this package's length-prefixed, HMAC-signed
// Conn.
const (
	TypePing = "ping"
	TypePong = "pong"

	// Shared frame bus (C10): a named registry of frame slots a producer
	// process creates and a cast's ExternalQueue source attaches to.
	TypeBusCreate = "bus_create"
	TypeBusAttach = "bus_attach"
	TypeBusDelete = "bus_delete"
	TypeBusList   = "bus_list"
	TypeBusInfo   = "bus_info"
	TypeBusPut    = "bus_put"
	TypeBusGet    = "bus_get"

	// Preview channel (C8): a cast mirrors processed frames to a viewer and
	// receives key-press control flags back.
	TypePreviewFrame   = "preview_frame"
	TypePreviewControl = "preview_control"
)

// MaxMessageSize is the maximum size of a JSON IPC message (16MB) — large
// enough for a single uncompressed RGB24 frame at the scale sizes this
// system targets (LED matrices, not HD video).
const MaxMessageSize = 16 * 1024 * 1024

// ProtocolVersion is the current IPC protocol version.
const ProtocolVersion = 1

// Envelope is the wire-format wrapper for all IPC messages.
type Envelope struct {
	ID      string          `json:"id"`
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Error   string          `json:"error,omitempty"`
	HMAC    string          `json:"hmac"`
}

// BusCreateRequest asks the shared frame bus server to allocate a named slot.
type BusCreateRequest struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// BusInfoResponse reports a slot's current shape, or Exists=false.
type BusInfoResponse struct {
	Exists bool `json:"exists"`
	Width  int  `json:"width"`
	Height int  `json:"height"`
}

// BusListResponse enumerates every live slot name (spec.md §4.10's `list()`).
type BusListResponse struct {
	Names []string `json:"names"`
}

// FramePayload carries one RGB24 frame's bytes plus its shape and sequence
// number, used by both TypeBusPut/TypeBusGet and TypePreviewFrame. A
// non-zero sentinel trailing byte is appended by the writer and stripped by
// the reader to tolerate a known zero-length pathology in some shared-slot
// implementations (spec.md §4.8) — see AppendSentinel/StripSentinel.
type FramePayload struct {
	// Name addresses the target slot for TypeBusPut/TypeBusGet; unused by
	// TypePreviewFrame, which has exactly one implicit destination per Conn.
	Name   string `json:"name,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Seq    uint64 `json:"seq"`
	Pixels []byte `json:"pixels"`
	// UpdatedAtUnixMilli is the wall-clock time the producer last wrote this
	// slot, used by the ExternalQueue source adapter (spec.md §4.3.6) to
	// detect writer silence and synthesize an idle frame after 2s.
	UpdatedAtUnixMilli int64 `json:"updatedAtUnixMilli,omitempty"`
}

// sentinelByte is appended to every Pixels buffer on the wire and checked
// (then stripped) on receipt.
const sentinelByte = 0xA5

// AppendSentinel returns a copy of pixels with the sentinel byte appended.
func AppendSentinel(pixels []byte) []byte {
	out := make([]byte, len(pixels)+1)
	copy(out, pixels)
	out[len(pixels)] = sentinelByte
	return out
}

// StripSentinel validates and removes the trailing sentinel byte.
func StripSentinel(pixels []byte) ([]byte, bool) {
	if len(pixels) == 0 || pixels[len(pixels)-1] != sentinelByte {
		return nil, false
	}
	return pixels[:len(pixels)-1], true
}

// PreviewControl is the viewer's key-press feedback channel back to the
// cast (spec.md §4.8: stop / toggle_preview / toggle_text).
type PreviewControl struct {
	Stop          bool `json:"stop"`
	TogglePreview bool `json:"togglePreview"`
	ToggleText    bool `json:"toggleText"`
}
