//go:build cgo

package discovery

import (
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/ledcast/caster/internal/logging"
)

// ScanARP actively sends ARP requests across every subnet and collects
// replies for timeout, using libpcap. Capture needs elevated privileges; a
// subnet whose interface cannot be found or opened (no capture device,
// insufficient permissions) is skipped, logged at debug level, and the
// replies from the other subnets are still returned. The only error it
// returns is a failure to list the host's interfaces. Its caller reads
// ReadARPCache alongside it in every case.
func ScanARP(subnets []*net.IPNet, exclude map[string]struct{}, timeout time.Duration) (map[string]string, error) {
	results := make(map[string]string)
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return results, err
	}

	for _, n := range subnets {
		iface, srcIP, err := interfaceFor(ifaces, n)
		if err != nil {
			continue
		}
		found, err := arpScanSubnet(iface, srcIP, n, exclude, timeout)
		if err != nil {
			log.Debug("arp scan on interface failed", "interface", iface.Name, logging.KeyError, err)
			continue
		}
		for ip, mac := range found {
			results[ip] = mac
		}
	}
	return results, nil
}

func interfaceFor(ifaces []net.Interface, n *net.IPNet) (net.Interface, net.IP, error) {
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if n.Contains(ipNet.IP) {
				return iface, ipNet.IP.To4(), nil
			}
		}
	}
	return net.Interface{}, nil, fmt.Errorf("discovery: no local interface on subnet %s", n)
}

func arpScanSubnet(iface net.Interface, srcIP net.IP, n *net.IPNet, exclude map[string]struct{}, timeout time.Duration) (map[string]string, error) {
	handle, err := pcap.OpenLive(iface.Name, 65536, false, timeout)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	results := make(map[string]string)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		readARPReplies(handle, results, stop)
	}()

	targets := expandTargets([]*net.IPNet{n}, 256)
	for _, ip := range targets {
		if _, skip := exclude[ip.String()]; skip {
			continue
		}
		sendARPRequest(handle, iface.HardwareAddr, srcIP, ip)
	}

	time.Sleep(timeout)
	close(stop)
	<-done
	return results, nil
}

func sendARPRequest(handle *pcap.Handle, srcMAC net.HardwareAddr, srcIP, dstIP net.IP) {
	eth := layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: srcIP.To4(),
		DstHwAddress:      net.HardwareAddr{0, 0, 0, 0, 0, 0},
		DstProtAddress:    dstIP.To4(),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &arp); err != nil {
		return
	}
	_ = handle.WritePacketData(buf.Bytes())
}

func readARPReplies(handle *pcap.Handle, results map[string]string, stop <-chan struct{}) {
	src := gopacket.NewPacketSource(handle, handle.LinkType())
	for {
		select {
		case <-stop:
			return
		case pkt, ok := <-src.Packets():
			if !ok {
				return
			}
			arpLayer := pkt.Layer(layers.LayerTypeARP)
			if arpLayer == nil {
				continue
			}
			a := arpLayer.(*layers.ARP)
			if a.Operation != layers.ARPReply {
				continue
			}
			ip := net.IP(a.SourceProtAddress).String()
			mac := net.HardwareAddr(a.SourceHwAddress).String()
			results[ip] = mac
		}
	}
}
