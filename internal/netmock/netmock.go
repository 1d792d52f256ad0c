// Package netmock provides a deterministic, in-memory fake of
// netdev.NetIface for tests: no real sockets, no wall-clock dependency.
package netmock

import (
	"errors"
	"net"

	"github.com/rtlabs-com/c-link-sub001/internal/netdev"
)

// SentFrame records one UDPSend call.
type SentFrame struct {
	Handle netdev.UDPHandle
	DstIP  net.IP
	DstPort int
	Data   []byte
}

type queuedFrame struct {
	data    []byte
	srcIP   net.IP
	srcPort int
	dstIP   net.IP
	ifIndex int
}

type socket struct {
	bindIP net.IP
	port   int
	queue  []queuedFrame
	closed bool
}

// NetIface is a hand-built fake of netdev.NetIface. Every method has a
// default in-memory behavior; UDPOpen, UDPSend and SetNetworkSettings can
// be overridden by setting the matching *Func field, matching the
// teacher's MockRouteReaderWriter pattern.
type NetIface struct {
	Sent []SentFrame

	macs      map[int]net.HardwareAddr
	netmasks  map[int]uint32
	nowMicros uint32
	nextHandle netdev.UDPHandle
	sockets   map[netdev.UDPHandle]*socket

	UDPOpenFunc           func(bindIP net.IP, port int) (netdev.UDPHandle, error)
	UDPSendFunc           func(h netdev.UDPHandle, dstIP net.IP, dstPort int, b []byte) (int, error)
	SetNetworkSettingsFunc func(ifIndex int, ip net.IP, netmask uint32) error
}

// New constructs an empty fake. No interface is pre-seeded: MAC and Netmask
// return an error for any ifIndex until SetMAC/SetNetmask configures it.
func New() *NetIface {
	return &NetIface{
		macs:     make(map[int]net.HardwareAddr),
		netmasks: make(map[int]uint32),
		sockets:  make(map[netdev.UDPHandle]*socket),
	}
}

// SetMAC configures the MAC address MAC(ifIndex) returns.
func (f *NetIface) SetMAC(ifIndex int, mac net.HardwareAddr) { f.macs[ifIndex] = mac }

// SetNetmask configures the netmask Netmask(ifIndex) returns.
func (f *NetIface) SetNetmask(ifIndex int, mask uint32) { f.netmasks[ifIndex] = mask }

// SetNow sets the value NowMicros returns.
func (f *NetIface) SetNow(now uint32) { f.nowMicros = now }

// Deliver injects an inbound datagram as if received on h.
func (f *NetIface) Deliver(h netdev.UDPHandle, data []byte, srcIP net.IP, srcPort int, dstIP net.IP, ifIndex int) {
	s, ok := f.sockets[h]
	if !ok {
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.queue = append(s.queue, queuedFrame{data: cp, srcIP: srcIP, srcPort: srcPort, dstIP: dstIP, ifIndex: ifIndex})
}

func (f *NetIface) UDPOpen(bindIP net.IP, port int) (netdev.UDPHandle, error) {
	if f.UDPOpenFunc != nil {
		return f.UDPOpenFunc(bindIP, port)
	}
	f.nextHandle++
	h := f.nextHandle
	f.sockets[h] = &socket{bindIP: bindIP, port: port}
	return h, nil
}

func (f *NetIface) UDPRecv(h netdev.UDPHandle, buf []byte) (n int, srcIP net.IP, srcPort int, dstIP net.IP, ifIndex int, ok bool, err error) {
	s, exists := f.sockets[h]
	if !exists || s.closed {
		return 0, nil, 0, nil, 0, false, errors.New("netmock: unknown or closed handle")
	}
	if len(s.queue) == 0 {
		return 0, nil, 0, nil, 0, false, nil
	}
	fr := s.queue[0]
	s.queue = s.queue[1:]
	n = copy(buf, fr.data)
	return n, fr.srcIP, fr.srcPort, fr.dstIP, fr.ifIndex, true, nil
}

func (f *NetIface) UDPSend(h netdev.UDPHandle, dstIP net.IP, dstPort int, b []byte) (int, error) {
	if f.UDPSendFunc != nil {
		return f.UDPSendFunc(h, dstIP, dstPort, b)
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	f.Sent = append(f.Sent, SentFrame{Handle: h, DstIP: dstIP, DstPort: dstPort, Data: cp})
	return len(b), nil
}

func (f *NetIface) UDPClose(h netdev.UDPHandle) error {
	if s, ok := f.sockets[h]; ok {
		s.closed = true
	}
	return nil
}

func (f *NetIface) MAC(ifIndex int) (net.HardwareAddr, error) {
	mac, ok := f.macs[ifIndex]
	if !ok {
		return nil, errors.New("netmock: no mac configured for ifindex")
	}
	return mac, nil
}

func (f *NetIface) Netmask(ifIndex int) (uint32, error) {
	mask, ok := f.netmasks[ifIndex]
	if !ok {
		return 0, errors.New("netmock: no netmask configured for ifindex")
	}
	return mask, nil
}

func (f *NetIface) SetNetworkSettings(ifIndex int, ip net.IP, netmask uint32) error {
	if f.SetNetworkSettingsFunc != nil {
		return f.SetNetworkSettingsFunc(ifIndex, ip, netmask)
	}
	f.netmasks[ifIndex] = netmask
	return nil
}

func (f *NetIface) NowMicros() uint32 { return f.nowMicros }
