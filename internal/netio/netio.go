// Package netio is the IPv4 UDP transport shared by the CCIEFB and SLMP
// slave engines: non-blocking receive with source/destination/interface
// control messages, built on golang.org/x/net/ipv4 the way the teacher's
// liveness package wraps *net.UDPConn.
package netio

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rtlabs-com/c-link-sub001/internal/netdev"
	"golang.org/x/net/ipv4"
)

// pollDeadline is the read deadline used to turn a blocking socket read
// into a non-blocking poll: long enough to not spin needlessly, short
// enough to never stall the caller's periodic loop.
const pollDeadline = 200 * time.Microsecond

type socket struct {
	raw *net.UDPConn
	pc4 *ipv4.PacketConn
}

// Transport owns a table of open UDP sockets, keyed by netdev.UDPHandle.
// It implements the UDP-facing half of netdev.NetIface; Adapter in
// internal/netiface embeds it alongside the netlink-backed interface
// operations to satisfy the full trait.
type Transport struct {
	next    netdev.UDPHandle
	sockets map[netdev.UDPHandle]*socket
}

// NewTransport constructs an empty Transport.
func NewTransport() *Transport {
	return &Transport{sockets: make(map[netdev.UDPHandle]*socket)}
}

// UDPOpen binds a new IPv4 UDP socket to bindIP:port and preconfigures
// destination/source/interface control messages for UDPRecv.
func (t *Transport) UDPOpen(bindIP net.IP, port int) (netdev.UDPHandle, error) {
	laddr := &net.UDPAddr{IP: bindIP, Port: port}
	raw, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return 0, fmt.Errorf("netio: listen %s:%d: %w", bindIP, port, err)
	}
	pc4 := ipv4.NewPacketConn(raw)
	if err := pc4.SetControlMessage(ipv4.FlagInterface|ipv4.FlagDst|ipv4.FlagSrc, true); err != nil {
		_ = raw.Close()
		return 0, fmt.Errorf("netio: set control message: %w", err)
	}
	t.next++
	h := t.next
	t.sockets[h] = &socket{raw: raw, pc4: pc4}
	return h, nil
}

// UDPRecv polls h for one datagram without blocking past pollDeadline. A
// deadline timeout is reported as ok=false, err=nil ("would-block"); any
// other read error is returned to the caller.
func (t *Transport) UDPRecv(h netdev.UDPHandle, buf []byte) (n int, srcIP net.IP, srcPort int, dstIP net.IP, ifIndex int, ok bool, err error) {
	s, exists := t.sockets[h]
	if !exists {
		return 0, nil, 0, nil, 0, false, fmt.Errorf("netio: unknown handle %d", h)
	}
	if err := s.raw.SetReadDeadline(time.Now().Add(pollDeadline)); err != nil {
		return 0, nil, 0, nil, 0, false, err
	}
	n, cm, raddr, err := s.pc4.ReadFrom(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, nil, 0, nil, 0, false, nil
		}
		return 0, nil, 0, nil, 0, false, err
	}
	if ua, ok := raddr.(*net.UDPAddr); ok {
		srcIP = ua.IP
		srcPort = ua.Port
	}
	if cm != nil {
		dstIP = cm.Dst
		ifIndex = cm.IfIndex
	}
	return n, srcIP, srcPort, dstIP, ifIndex, true, nil
}

// UDPSend sends b to dstIP:dstPort over h.
func (t *Transport) UDPSend(h netdev.UDPHandle, dstIP net.IP, dstPort int, b []byte) (int, error) {
	s, exists := t.sockets[h]
	if !exists {
		return 0, fmt.Errorf("netio: unknown handle %d", h)
	}
	dst := &net.UDPAddr{IP: dstIP, Port: dstPort}
	return s.pc4.WriteTo(b, nil, dst)
}

// UDPClose closes h. Idempotent.
func (t *Transport) UDPClose(h netdev.UDPHandle) error {
	s, exists := t.sockets[h]
	if !exists {
		return nil
	}
	delete(t.sockets, h)
	return s.raw.Close()
}
