package multicast

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/ledcast/caster/internal/frame"
)

func TestDispatchCallsEveryEnqueuer(t *testing.T) {
	var count atomic.Int32
	enqueuers := make([]Enqueuer, 3)
	for i := range enqueuers {
		enqueuers[i] = func(f frame.Frame) bool {
			count.Add(1)
			return true
		}
	}
	frames := []frame.Frame{frame.Blank(1, 1, 1), frame.Blank(1, 1, 1), frame.Blank(1, 1, 1)}

	Dispatch(frames, enqueuers)

	if count.Load() != 3 {
		t.Fatalf("expected 3 enqueue calls, got %d", count.Load())
	}
}

func TestDispatchReplicatesSingleFrame(t *testing.T) {
	var seen []frame.Frame
	var mu []Enqueuer
	f := frame.Blank(2, 2, 7)
	for i := 0; i < 3; i++ {
		mu = append(mu, func(fr frame.Frame) bool {
			seen = append(seen, fr)
			return true
		})
	}
	Dispatch([]frame.Frame{f}, mu)
	if len(seen) != 3 {
		t.Fatalf("expected frame replicated to 3 destinations, got %d", len(seen))
	}
}

func TestDispatchSurvivesSlowEnqueuerPastBarrier(t *testing.T) {
	fast := func(f frame.Frame) bool { return true }
	slow := func(f frame.Frame) bool {
		time.Sleep(2 * time.Second)
		return true
	}
	start := time.Now()
	Dispatch([]frame.Frame{frame.Blank(1, 1, 1), frame.Blank(1, 1, 1)}, []Enqueuer{fast, slow})
	if time.Since(start) > barrierTimeout+500*time.Millisecond {
		t.Fatalf("Dispatch should return at the barrier timeout, took %v", time.Since(start))
	}
}

func TestIPSwapperCircularRotatesEachTick(t *testing.T) {
	var last string
	a := func(f frame.Frame) bool { last = "a"; return true }
	b := func(f frame.Frame) bool { last = "b"; return true }
	base := []Enqueuer{a, b}
	s := NewIPSwapper(base, SwapCircular)

	first := s.Next()
	second := s.Next()
	if len(first) != 2 || len(second) != 2 {
		t.Fatal("expected 2-element orderings")
	}
	first[0](frame.Blank(1, 1, 1))
	if last != "b" {
		t.Fatalf("first tick should lead with b, led with %s", last)
	}
	second[0](frame.Blank(1, 1, 1))
	if last != "a" {
		t.Fatalf("second tick should lead with a, led with %s", last)
	}
}

func TestIPSwapperNoneReturnsBaseOrder(t *testing.T) {
	a := func(f frame.Frame) bool { return true }
	base := []Enqueuer{a}
	s := NewIPSwapper(base, SwapNone)
	out := s.Next()
	if len(out) != 1 {
		t.Fatalf("expected base order of length 1, got %d", len(out))
	}
}
