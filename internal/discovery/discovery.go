// Package discovery implements C12 device discovery (SPEC_FULL.md §4.12):
// two independent probes, mDNS and ARP, run in parallel and merge by IP into
// candidate lighting controllers. Results never auto-populate a running
// cast's destinations — they are read-only candidates for an operator or
// external controller to choose from via config or an Action.
package discovery

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/ledcast/caster/internal/device"
	"github.com/ledcast/caster/internal/logging"
)

var log = logging.L("discovery")

// Source identifies which probe found a DiscoveredDevice.
type Source string

const (
	SourceMDNS   Source = "mdns"
	SourceARP    Source = "arp"
	SourceManual Source = "manual"
)

// DiscoveredDevice is SPEC_FULL.md §3's DiscoveredDevice: a discovery
// candidate, never auto-promoted into a Cast.
type DiscoveredDevice struct {
	Addr     string
	Port     int
	Source   Source
	MatrixW  int
	MatrixH  int
	SeenAt   time.Time
}

// Config controls one discovery pass.
type Config struct {
	// Subnets to ARP/probe, CIDR form ("192.168.1.0/24"). Empty skips the
	// ARP probe's active scan but still reads the OS ARP cache.
	Subnets []string
	// MDNSTimeout bounds the mDNS browse duration (default 5s).
	MDNSTimeout time.Duration
	// WLEDProbeTimeout bounds each candidate's /json/info confirmation call.
	WLEDProbeTimeout time.Duration
}

func (c Config) normalized() Config {
	if c.MDNSTimeout <= 0 {
		c.MDNSTimeout = 5 * time.Second
	}
	if c.WLEDProbeTimeout <= 0 {
		c.WLEDProbeTimeout = 1 * time.Second
	}
	return c
}

// Discover runs the mDNS and ARP probes in parallel and merges their
// results by IP. A failed probe is logged and the other probe's results
// are still returned (SPEC_FULL.md §7 DiscoveryError) — discovery never
// blocks cast startup, so callers should invoke this from the `discover`
// subcommand or a background timer, never from a cast's own goroutine.
func Discover(ctx context.Context, cfg Config) []DiscoveredDevice {
	cfg = cfg.normalized()

	var wg sync.WaitGroup
	var mu sync.Mutex
	merged := make(map[string]*DiscoveredDevice)

	upsert := func(addr string, src Source, w, h int) {
		mu.Lock()
		defer mu.Unlock()
		d, ok := merged[addr]
		if !ok {
			merged[addr] = &DiscoveredDevice{Addr: addr, Port: 80, Source: src, MatrixW: w, MatrixH: h, SeenAt: time.Now()}
			return
		}
		if w > 0 && h > 0 {
			d.MatrixW, d.MatrixH = w, h
		}
		d.SeenAt = time.Now()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		entries, err := BrowseMDNS(ctx, cfg.MDNSTimeout)
		if err != nil {
			log.Warn("mdns probe failed", logging.KeyError, err)
			return
		}
		for _, e := range entries {
			upsert(e.Addr, SourceMDNS, 0, 0)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ips, err := arpCandidates(cfg.Subnets, cfg.MDNSTimeout)
		if err != nil {
			log.Warn("arp probe failed", logging.KeyError, err)
		}
		for _, ip := range ips {
			upsert(ip, SourceARP, 0, 0)
		}
	}()

	wg.Wait()

	mu.Lock()
	candidates := make([]string, 0, len(merged))
	for addr := range merged {
		candidates = append(candidates, addr)
	}
	mu.Unlock()

	confirmWLED(ctx, candidates, cfg.WLEDProbeTimeout, upsert)

	mu.Lock()
	defer mu.Unlock()
	out := make([]DiscoveredDevice, 0, len(merged))
	for _, d := range merged {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// confirmWLED probes each merged candidate's WLED JSON API to learn its
// matrix size; candidates that don't answer are still returned (they may
// be some other _http._tcp device or a lighting controller on a port this
// probe doesn't speak), just without MatrixW/MatrixH populated.
func confirmWLED(ctx context.Context, addrs []string, timeout time.Duration, upsert func(addr string, src Source, w, h int)) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, 32)
	for _, addr := range addrs {
		wg.Add(1)
		sem <- struct{}{}
		go func(addr string) {
			defer wg.Done()
			defer func() { <-sem }()
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			info, err := device.NewWLEDClient(addr).FetchInfo(probeCtx)
			if err != nil {
				return
			}
			if info.Leds.Matrix.W > 0 && info.Leds.Matrix.H > 0 {
				upsert(addr, SourceManual, info.Leds.Matrix.W, info.Leds.Matrix.H)
			}
		}(addr)
	}
	wg.Wait()
}

// arpCandidates merges an active ARP scan (when available) with the OS ARP
// cache and, if subnets are configured, a ping sweep — matching the
// teacher's layered "active scan, then cache, then ping" fallback chain.
func arpCandidates(subnets []string, timeout time.Duration) ([]string, error) {
	nets, err := parseSubnets(subnets)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	add := func(ip string) {
		if !seen[ip] {
			seen[ip] = true
			out = append(out, ip)
		}
	}

	if len(nets) > 0 {
		scanned, err := ScanARP(nets, nil, timeout)
		if err != nil {
			log.Debug("active ARP scan unavailable", logging.KeyError, err)
		}
		for ip := range scanned {
			add(ip)
		}
	}

	for ip := range ReadARPCache() {
		add(ip)
	}

	if len(nets) > 0 {
		targets := expandTargets(nets, 256)
		for _, ip := range PingSweep(targets, timeout, 128) {
			add(ip.String())
		}
	}

	return out, nil
}

func parseSubnets(raw []string) ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, s := range raw {
		_, ipnet, err := net.ParseCIDR(s)
		if err != nil {
			return nil, err
		}
		out = append(out, ipnet)
	}
	return out, nil
}

// expandTargets enumerates host addresses in each subnet, capped at maxPerNet
// to bound an active scan against an accidentally huge CIDR (e.g. a /8).
func expandTargets(nets []*net.IPNet, maxPerNet int) []net.IP {
	var out []net.IP
	for _, n := range nets {
		ip := n.IP.Mask(n.Mask).To4()
		if ip == nil {
			continue
		}
		count := 0
		for cur := cloneIP(ip); n.Contains(cur) && count < maxPerNet; incIP(cur) {
			out = append(out, cloneIP(cur))
			count++
		}
	}
	return out
}

func cloneIP(ip net.IP) net.IP {
	out := make(net.IP, len(ip))
	copy(out, ip)
	return out
}

func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			return
		}
	}
}
