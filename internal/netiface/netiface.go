// Package netiface adapts netdev.NetIface onto a real Linux network stack:
// UDP transport from internal/netio, and interface/address manipulation via
// github.com/vishvananda/netlink, grounded the way the teacher's routing
// package wraps netlink for tunnel and route management.
package netiface

import (
	"fmt"
	"net"
	"time"

	"github.com/rtlabs-com/c-link-sub001/internal/netio"
	nl "github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// Adapter implements netdev.NetIface against the host's real network
// stack. The zero value is not usable; construct with New.
type Adapter struct {
	*netio.Transport
	start time.Time
}

// New constructs an Adapter whose NowMicros clock starts at the moment of
// construction.
func New() *Adapter {
	return &Adapter{Transport: netio.NewTransport(), start: time.Now()}
}

// MAC returns the hardware address of the interface identified by ifIndex.
func (a *Adapter) MAC(ifIndex int) (net.HardwareAddr, error) {
	link, err := nl.LinkByIndex(ifIndex)
	if err != nil {
		return nil, fmt.Errorf("netiface: link by index %d: %w", ifIndex, err)
	}
	return link.Attrs().HardwareAddr, nil
}

// Netmask returns the IPv4 netmask of the first address configured on
// ifIndex, in the same big-endian-as-uint32 representation used throughout
// this module.
func (a *Adapter) Netmask(ifIndex int) (uint32, error) {
	link, err := nl.LinkByIndex(ifIndex)
	if err != nil {
		return 0, fmt.Errorf("netiface: link by index %d: %w", ifIndex, err)
	}
	addrs, err := nl.AddrList(link, nl.FAMILY_V4)
	if err != nil {
		return 0, fmt.Errorf("netiface: addr list: %w", err)
	}
	if len(addrs) == 0 {
		return 0, fmt.Errorf("netiface: no ipv4 address on link %d", ifIndex)
	}
	mask := addrs[0].Mask
	return uint32(mask[0])<<24 | uint32(mask[1])<<16 | uint32(mask[2])<<8 | uint32(mask[3]), nil
}

// SetNetworkSettings replaces ifIndex's IPv4 address with ip/netmask: the
// previous address (if any) is removed first, mirroring the teacher's
// replace-don't-accumulate pattern for tunnel addresses.
func (a *Adapter) SetNetworkSettings(ifIndex int, ip net.IP, netmask uint32) error {
	link, err := nl.LinkByIndex(ifIndex)
	if err != nil {
		return fmt.Errorf("netiface: link by index %d: %w", ifIndex, err)
	}
	existing, err := nl.AddrList(link, nl.FAMILY_V4)
	if err != nil {
		return fmt.Errorf("netiface: addr list: %w", err)
	}
	for _, old := range existing {
		if err := nl.AddrDel(link, &old); err != nil {
			return fmt.Errorf("netiface: addr del %s: %w", old.IPNet, err)
		}
	}
	mask := net.IPv4Mask(byte(netmask>>24), byte(netmask>>16), byte(netmask>>8), byte(netmask))
	addr := &nl.Addr{IPNet: &net.IPNet{IP: ip.To4(), Mask: mask}, Scope: unix.RT_SCOPE_UNIVERSE}
	if err := nl.AddrAdd(link, addr); err != nil {
		return fmt.Errorf("netiface: addr add %s: %w", addr.IPNet, err)
	}
	return nil
}

// NowMicros returns microseconds elapsed since Adapter construction,
// truncated to uint32 (wraps every ~71.5 minutes by design, spec §4.1).
func (a *Adapter) NowMicros() uint32 {
	return uint32(time.Since(a.start).Microseconds())
}
