package obssample

import (
	"testing"

	"github.com/ledcast/caster/internal/cast"
)

type fakeLister struct {
	snaps []cast.Snapshot
	casts map[string]*cast.Cast
}

func (f *fakeLister) List() []cast.Snapshot { return f.snaps }
func (f *fakeLister) Get(name string) (*cast.Cast, bool) {
	c, ok := f.casts[name]
	return c, ok
}

func TestSamplerMatchesEmptyFilter(t *testing.T) {
	s := NewSampler(&fakeLister{}, nil)
	if !s.matches([]string{"10.0.0.5"}) {
		t.Fatal("expected empty filter to match everything")
	}
}

func TestSamplerMatchesDevList(t *testing.T) {
	s := NewSampler(&fakeLister{}, []string{"10.0.0.5"})
	if !s.matches([]string{"10.0.0.1", "10.0.0.5"}) {
		t.Fatal("expected destination list intersecting dev_list to match")
	}
	if s.matches([]string{"10.0.0.9"}) {
		t.Fatal("expected destination list outside dev_list to not match")
	}
}
