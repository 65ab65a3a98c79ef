package multicast

import (
	"math/rand/v2"
)

// SwapMode selects how IPSwapper reorders a destination list each tick
// (spec.md §4.6's optional effects sub-module).
type SwapMode int

const (
	SwapNone SwapMode = iota
	SwapCircular
	SwapReverse
	SwapRandom
	SwapRandomReplace
)

// IPSwapper reorders a fixed destination list per tick to produce visual
// effects across a tile grid, without touching the underlying Enqueuers.
// Cancelable by resetting Mode to SwapNone via an action (spec.md §4.7's
// "stop-text"-style at-most-once mutation between frames).
type IPSwapper struct {
	Mode SwapMode

	base   []Enqueuer
	offset int
}

// NewIPSwapper captures the destination order to reorder on each call.
func NewIPSwapper(base []Enqueuer, mode SwapMode) *IPSwapper {
	return &IPSwapper{Mode: mode, base: base}
}

// Next returns this tick's destination ordering.
func (s *IPSwapper) Next() []Enqueuer {
	n := len(s.base)
	if n == 0 {
		return nil
	}

	switch s.Mode {
	case SwapCircular:
		s.offset = (s.offset + 1) % n
		return rotate(s.base, s.offset)
	case SwapReverse:
		return reverse(s.base)
	case SwapRandom:
		return shuffled(s.base)
	case SwapRandomReplace:
		return withReplacement(s.base)
	default:
		return s.base
	}
}

func rotate(in []Enqueuer, offset int) []Enqueuer {
	n := len(in)
	out := make([]Enqueuer, n)
	for i := 0; i < n; i++ {
		out[i] = in[(i+offset)%n]
	}
	return out
}

func reverse(in []Enqueuer) []Enqueuer {
	n := len(in)
	out := make([]Enqueuer, n)
	for i := 0; i < n; i++ {
		out[i] = in[n-1-i]
	}
	return out
}

func shuffled(in []Enqueuer) []Enqueuer {
	out := make([]Enqueuer, len(in))
	copy(out, in)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func withReplacement(in []Enqueuer) []Enqueuer {
	out := make([]Enqueuer, len(in))
	for i := range out {
		out[i] = in[rand.IntN(len(in))]
	}
	return out
}
