// Package source implements the C3 source adapters (spec.md §4.3): the
// polymorphic capture side of a cast. Every adapter satisfies the same
// {Open, NextFrame, Close} capability so the cast controller never
// switches on concrete type once a Source is bound.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ledcast/caster/internal/frame"
)

// ErrEOF is returned by NextFrame when the source has no more frames to
// give (a finite MediaFile reaching its last frame). It is io.EOF so
// callers can use the stdlib sentinel directly.
var ErrEOF = io.EOF

// Source is the capability every C3 adapter implements. Open is called once
// from the cast controller's Opening state; NextFrame is called once per
// tick from Running; Close is called once from Closing. None of the methods
// are safe to call concurrently — a cast drives its Source from one
// goroutine.
type Source interface {
	Open(ctx context.Context) error
	NextFrame(ctx context.Context) (frame.Frame, error)
	Close() error
}

// Kind tags which variant a parsed Spec names (spec.md §4.3's six
// variants). Kept as a string form externally per spec.md's REDESIGN FLAG
// ("keep the string form only as an external parse target") and as this
// typed enum internally so the cast controller switches on a closed set.
type Kind string

const (
	KindScreen Kind = "screen"
	KindArea   Kind = "area"
	KindWindow Kind = "window"
	KindMedia  Kind = "media"
	KindCamera Kind = "camera"
	KindQueue  Kind = "queue"
)

// Spec is a parsed source_spec string (spec.md §3's `source_spec`
// attribute). Exactly the fields relevant to Kind are populated.
type Spec struct {
	Kind Kind

	// KindScreen / KindArea
	Monitor int

	// KindArea: rectangle within Monitor.
	X, Y, W, H int

	// KindWindow: title on Linux/macOS, numeric id on Windows. Raw holds
	// whichever the caller supplied; WindowID is parsed from Raw when it
	// looks numeric, 0 otherwise (title lookup).
	Raw      string
	WindowID int

	// KindMedia: filesystem path to a video file or image sequence.
	Path string

	// KindCamera: OS-enumerated device index.
	Index int

	// KindQueue: the framebus slot name to attach to.
	SlotName string
}

// ParseSpec decodes the external string forms named in spec.md's REDESIGN
// FLAGS: "desktop"/"desktop:<monitor>", "area:<monitor>:<x>,<y>,<w>,<h>",
// "win=<title-or-id>", "media:<path>", "camera:<index>", "queue:<name>".
func ParseSpec(raw string) (Spec, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "desktop" || raw == "screen":
		return Spec{Kind: KindScreen, Monitor: 0}, nil

	case strings.HasPrefix(raw, "desktop:") || strings.HasPrefix(raw, "screen:"):
		_, rest, _ := strings.Cut(raw, ":")
		monitor, err := strconv.Atoi(rest)
		if err != nil {
			return Spec{}, fmt.Errorf("source: bad monitor index in %q: %w", raw, err)
		}
		return Spec{Kind: KindScreen, Monitor: monitor}, nil

	case strings.HasPrefix(raw, "area:"):
		return parseArea(raw)

	case strings.HasPrefix(raw, "win="):
		id := strings.TrimPrefix(raw, "win=")
		s := Spec{Kind: KindWindow, Raw: id}
		if n, err := strconv.Atoi(id); err == nil {
			s.WindowID = n
		}
		return s, nil

	case strings.HasPrefix(raw, "media:"):
		path := strings.TrimPrefix(raw, "media:")
		if path == "" {
			return Spec{}, fmt.Errorf("source: empty media path in %q", raw)
		}
		return Spec{Kind: KindMedia, Path: path}, nil

	case strings.HasPrefix(raw, "camera:"):
		idx, err := strconv.Atoi(strings.TrimPrefix(raw, "camera:"))
		if err != nil {
			return Spec{}, fmt.Errorf("source: bad camera index in %q: %w", raw, err)
		}
		return Spec{Kind: KindCamera, Index: idx}, nil

	case strings.HasPrefix(raw, "queue:") || strings.HasPrefix(raw, "queue("):
		name := strings.TrimPrefix(raw, "queue:")
		name = strings.TrimPrefix(name, "queue(")
		name = strings.TrimSuffix(name, ")")
		if name == "" {
			return Spec{}, fmt.Errorf("source: empty queue slot name in %q", raw)
		}
		return Spec{Kind: KindQueue, SlotName: name}, nil

	default:
		return Spec{}, fmt.Errorf("source: unrecognized source_spec %q", raw)
	}
}

func parseArea(raw string) (Spec, error) {
	body := strings.TrimPrefix(raw, "area:")
	parts := strings.Split(body, ":")
	var monitorPart, rectPart string
	switch len(parts) {
	case 1:
		rectPart = parts[0]
	case 2:
		monitorPart, rectPart = parts[0], parts[1]
	default:
		return Spec{}, fmt.Errorf("source: malformed area spec %q", raw)
	}

	nums := strings.Split(rectPart, ",")
	if len(nums) != 4 {
		return Spec{}, fmt.Errorf("source: area spec %q needs x,y,w,h", raw)
	}
	vals := make([]int, 4)
	for i, n := range nums {
		v, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return Spec{}, fmt.Errorf("source: bad integer in area spec %q: %w", raw, err)
		}
		vals[i] = v
	}
	if vals[2] <= 0 || vals[3] <= 0 {
		return Spec{}, fmt.Errorf("source: area spec %q has non-positive width/height", raw)
	}

	monitor := 0
	if monitorPart != "" {
		m, err := strconv.Atoi(monitorPart)
		if err != nil {
			return Spec{}, fmt.Errorf("source: bad monitor index in area spec %q: %w", raw, err)
		}
		monitor = m
	}

	return Spec{Kind: KindArea, Monitor: monitor, X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

// ErrUnsupportedKind is returned (wrapped) by New when a Spec's Kind has no
// adapter.
var ErrUnsupportedKind = errors.New("source: unsupported on this platform")
