package record

import (
	"fmt"
	"strings"

	"github.com/y9o/go-openh264/openh264"

	"github.com/ledcast/caster/internal/frame"
)

// frameEncoder turns one processed Frame into the bytes appended to the
// current segment buffer. Grounded on the teacher's encoderBackend
// interface (internal/remote/desktop/encoder.go): a small swappable
// backend behind one exported config knob (here, record_encode), rather
// than hand-rolling a codec-specific Recorder for each choice.
type frameEncoder interface {
	Encode(f frame.Frame) ([]byte, error)
	Ext() string
	Close() error
}

func newEncoder(kind string) (frameEncoder, error) {
	switch strings.ToLower(kind) {
	case "", "raw":
		return rawEncoder{}, nil
	case "h264":
		return newH264Encoder()
	default:
		return nil, fmt.Errorf("unknown record_encode %q", kind)
	}
}

// rawEncoder appends tightly packed RGB24, matching frame.Frame's own
// in-memory layout — no conversion, no state.
type rawEncoder struct{}

func (rawEncoder) Encode(f frame.Frame) ([]byte, error) { return f.Pixels, nil }
func (rawEncoder) Ext() string                          { return "rgb24" }
func (rawEncoder) Close() error                         { return nil }

// h264Encoder wraps go-openh264's software encoder. It converts each RGB24
// frame to I420 (the only input format libopenh264 accepts) before
// encoding, and lazily (re)initializes the encoder the first time it sees
// a frame's dimensions or when they change mid-stream.
type h264Encoder struct {
	enc    *openh264.Encoder
	width  int
	height int
}

func newH264Encoder() (*h264Encoder, error) {
	return &h264Encoder{}, nil
}

func (h *h264Encoder) Encode(f frame.Frame) ([]byte, error) {
	if h.enc == nil || h.width != f.Width || h.height != f.Height {
		if h.enc != nil {
			h.enc.Close()
		}
		enc, err := openh264.NewEncoder(openh264.Config{
			Width:   f.Width,
			Height:  f.Height,
			Bitrate: 2_000_000,
			FPS:     30,
		})
		if err != nil {
			return nil, fmt.Errorf("h264: init encoder: %w", err)
		}
		h.enc = enc
		h.width = f.Width
		h.height = f.Height
	}

	yuv := rgb24ToI420(f)
	nal, err := h.enc.Encode(yuv)
	if err != nil {
		return nil, fmt.Errorf("h264: encode: %w", err)
	}
	return nal, nil
}

func (h *h264Encoder) Ext() string { return "h264" }

func (h *h264Encoder) Close() error {
	if h.enc == nil {
		return nil
	}
	return h.enc.Close()
}

// rgb24ToI420 performs BT.601 full-range RGB->YUV420 planar conversion.
func rgb24ToI420(f frame.Frame) []byte {
	w, hgt := f.Width, f.Height
	ySize := w * hgt
	cSize := (w / 2) * (hgt / 2)
	out := make([]byte, ySize+2*cSize)
	yPlane := out[:ySize]
	uPlane := out[ySize : ySize+cSize]
	vPlane := out[ySize+cSize:]

	for y := 0; y < hgt; y++ {
		for x := 0; x < w; x++ {
			r, g, b := f.At(x, y)
			yPlane[y*w+x] = clampByte(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
		}
	}
	for cy := 0; cy < hgt/2; cy++ {
		for cx := 0; cx < w/2; cx++ {
			r, g, b := f.At(cx*2, cy*2)
			u := clampByte(-0.169*float64(r) - 0.331*float64(g) + 0.5*float64(b) + 128)
			v := clampByte(0.5*float64(r) - 0.419*float64(g) - 0.081*float64(b) + 128)
			uPlane[cy*(w/2)+cx] = u
			vPlane[cy*(w/2)+cx] = v
		}
	}
	return out
}

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
