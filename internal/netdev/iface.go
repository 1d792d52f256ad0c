// Package netdev defines the external network trait the CCIEFB/SLMP core
// depends on (spec §6): a narrow, non-blocking UDP transport plus the
// handful of interface-level operations SLMP set-IP needs. It intentionally
// has no other internal dependency so every package that needs the trait
// type — the engines and the façade alike — can import it directly without
// creating an import cycle with whichever package assembles the concrete
// implementation.
package netdev

import "net"

// UDPHandle identifies one open UDP socket. The zero value never names an
// open socket.
type UDPHandle int

// NetIface is the Go mirror of the slave core's external network trait
// (spec §6). Implementations must be safe to call from a single goroutine
// driving Periodic; the core never calls it concurrently.
type NetIface interface {
	// UDPOpen opens a non-blocking UDP socket bound to bindIP:port.
	UDPOpen(bindIP net.IP, port int) (UDPHandle, error)

	// UDPRecv attempts to read one datagram without blocking. ok is false
	// and err is nil when no datagram is available ("would-block").
	UDPRecv(h UDPHandle, buf []byte) (n int, srcIP net.IP, srcPort int, dstIP net.IP, ifIndex int, ok bool, err error)

	// UDPSend sends b to dstIP:dstPort. A short write (sent < len(b)) is
	// treated by the core as a failure.
	UDPSend(h UDPHandle, dstIP net.IP, dstPort int, b []byte) (sent int, err error)

	// UDPClose closes h. Idempotent.
	UDPClose(h UDPHandle) error

	// MAC returns the hardware address of the interface identified by
	// ifIndex.
	MAC(ifIndex int) (net.HardwareAddr, error)

	// Netmask returns the IPv4 netmask currently configured on ifIndex, in
	// the same big-endian-as-uint32 representation as netutil.IPToUint32.
	Netmask(ifIndex int) (uint32, error)

	// SetNetworkSettings applies ip/netmask to ifIndex. Used by the SLMP
	// set-IP handler.
	SetNetworkSettings(ifIndex int, ip net.IP, netmask uint32) error

	// NowMicros returns a free-running monotonic microsecond counter.
	NowMicros() uint32
}
