// Package obssample implements the periodic host/cast sampler behind the
// `sys-charts` subcommand (C15): CPU, memory, network I/O, and per-cast
// frame/packet counters, filtered to the destination IPs named by
// --dev_list. Sampling shape is grounded on the teacher's
// collectors.MetricsCollector; this sampler additionally cross-references
// live casts instead of processes.
package obssample

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"

	"github.com/ledcast/caster/internal/cast"
	"github.com/ledcast/caster/internal/logging"
)

var log = logging.L("obssample")

// CastSample is one cast's counters at sample time.
type CastSample struct {
	Name         string   `json:"name"`
	State        string   `json:"state"`
	TotalFrames  uint64   `json:"totalFrames"`
	TotalPackets uint64   `json:"totalPackets"`
	Destinations []string `json:"destinations"`
}

// Sample is one point-in-time reading.
type Sample struct {
	CPUPercent      float64      `json:"cpuPercent"`
	RAMPercent      float64      `json:"ramPercent"`
	RAMUsedMB       uint64       `json:"ramUsedMb"`
	NetworkInBytes  uint64       `json:"networkInBytes,omitempty"`
	NetworkOutBytes uint64       `json:"networkOutBytes,omitempty"`
	Casts           []CastSample `json:"casts"`
}

// Lister is the subset of *cast.Controller the sampler needs.
type Lister interface {
	List() []cast.Snapshot
	Get(name string) (*cast.Cast, bool)
}

// Sampler takes periodic Sample readings, optionally restricted to casts
// whose destinations intersect a configured device list.
type Sampler struct {
	ctl     Lister
	devList map[string]struct{} // empty means "no filter"

	lastNetIn  uint64
	lastNetOut uint64
}

// NewSampler builds a Sampler. devList is the set of device IPs passed via
// --dev_list; an empty slice disables filtering (every cast is sampled).
func NewSampler(ctl Lister, devList []string) *Sampler {
	s := &Sampler{ctl: ctl}
	if len(devList) > 0 {
		s.devList = make(map[string]struct{}, len(devList))
		for _, d := range devList {
			s.devList[d] = struct{}{}
		}
	}
	return s
}

// Sample takes one reading. CPU sampling blocks for up to 200ms to get a
// meaningful instantaneous percentage, matching gopsutil's documented
// zero-interval caveat of returning an unreliable first value.
func (s *Sampler) Sample(ctx context.Context) (Sample, error) {
	var sample Sample

	cpuPercent, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		log.Warn("cpu sample failed", logging.KeyError, err)
	} else if len(cpuPercent) > 0 {
		sample.CPUPercent = cpuPercent[0]
	}

	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		log.Warn("memory sample failed", logging.KeyError, err)
	} else {
		sample.RAMPercent = vmem.UsedPercent
		sample.RAMUsedMB = vmem.Used / 1024 / 1024
	}

	netIO, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		log.Warn("network sample failed", logging.KeyError, err)
	} else if len(netIO) > 0 {
		in, out := netIO[0].BytesRecv, netIO[0].BytesSent
		if s.lastNetIn > 0 {
			sample.NetworkInBytes = in - s.lastNetIn
			sample.NetworkOutBytes = out - s.lastNetOut
		}
		s.lastNetIn, s.lastNetOut = in, out
	}

	sample.Casts = s.castSamples()
	return sample, nil
}

func (s *Sampler) castSamples() []CastSample {
	if s.ctl == nil {
		// No in-process controller: the caller (e.g. a separate sys-charts
		// process) fetches cast data over the control surface instead and
		// appends it to Sample.Casts itself.
		return nil
	}
	var out []CastSample
	for _, snap := range s.ctl.List() {
		c, ok := s.ctl.Get(snap.Name)
		if !ok {
			continue
		}
		dests := c.Destinations()
		if !s.matches(dests) {
			continue
		}
		out = append(out, CastSample{
			Name:         snap.Name,
			State:        snap.State,
			TotalFrames:  snap.TotalFrames,
			TotalPackets: snap.TotalPackets,
			Destinations: dests,
		})
	}
	return out
}

// matches reports whether dests intersects the configured device filter.
// An empty filter matches everything.
func (s *Sampler) matches(dests []string) bool {
	if len(s.devList) == 0 {
		return true
	}
	for _, d := range dests {
		if _, ok := s.devList[d]; ok {
			return true
		}
	}
	return false
}
