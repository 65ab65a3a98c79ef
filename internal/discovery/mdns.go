package discovery

import (
	"context"
	"time"

	"github.com/grandcat/zeroconf"
)

// MDNSEntry is one _http._tcp service the browser observed, before WLED
// confirmation.
type MDNSEntry struct {
	Instance string
	Addr     string
	Port     int
}

// BrowseMDNS browses for _http._tcp.local. services (the same service type
// WLED advertises) for up to timeout, per SPEC_FULL.md §4.12 and §6.
func BrowseMDNS(ctx context.Context, timeout time.Duration) ([]MDNSEntry, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}

	entries := make(chan *zeroconf.ServiceEntry, 32)
	var results []MDNSEntry
	done := make(chan struct{})

	go func() {
		defer close(done)
		for e := range entries {
			addr := entryAddr(e)
			if addr == "" {
				continue
			}
			results = append(results, MDNSEntry{Instance: e.Instance, Addr: addr, Port: e.Port})
		}
	}()

	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := resolver.Browse(browseCtx, "_http._tcp", "local.", entries); err != nil {
		return nil, err
	}

	<-browseCtx.Done()
	<-done
	return results, nil
}

func entryAddr(e *zeroconf.ServiceEntry) string {
	if len(e.AddrIPv4) > 0 {
		return e.AddrIPv4[0].String()
	}
	if len(e.AddrIPv6) > 0 {
		return e.AddrIPv6[0].String()
	}
	return ""
}
