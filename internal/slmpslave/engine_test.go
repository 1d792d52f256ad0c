package slmpslave

import (
	"net"
	"testing"

	"github.com/rtlabs-com/c-link-sub001/internal/netdev"
	"github.com/rtlabs-com/c-link-sub001/internal/netmock"
	"github.com/rtlabs-com/c-link-sub001/internal/netutil"
	"github.com/rtlabs-com/c-link-sub001/internal/slmp"
	"github.com/stretchr/testify/require"
)

func putCommonReq(b []byte, serial, cmd uint16) {
	netutil.PutBE16(b[0:2], 0x5400)
	netutil.PutLE16(b[2:4], serial)
	b[7] = 0xFF
	netutil.PutLE16(b[8:10], 0x03FF)
	netutil.PutLE16(b[11:13], uint16(len(b)-13))
	netutil.PutLE16(b[15:17], cmd)
	netutil.PutLE16(b[17:19], slmp.SubCommand)
}

func buildNodeSearchReq(serial uint16, masterMAC [6]byte, masterIP uint32) []byte {
	b := make([]byte, slmp.NodeSearchReqSize)
	putCommonReq(b, serial, slmp.CommandNodeSearch)
	mm := netutil.ReverseMAC(masterMAC)
	copy(b[19:25], mm[:])
	netutil.PutLE32(b[25:29], masterIP)
	return b
}

func buildSetIPReq(serial uint16, masterMAC [6]byte, masterIP uint32, slaveMAC [6]byte, newIP, newNetmask uint32) []byte {
	b := make([]byte, slmp.SetIPReqSize)
	putCommonReq(b, serial, slmp.CommandSetIP)
	off := 19
	mm := netutil.ReverseMAC(masterMAC)
	copy(b[off:off+6], mm[:])
	off += 6
	netutil.PutLE32(b[off:off+4], masterIP)
	off += 4
	b[off] = 4 // address_size
	b[off+1] = 1 // protocol_id
	b[off+2] = 0 // slave_hostname_size
	off += 3
	sm := netutil.ReverseMAC(slaveMAC)
	copy(b[off:off+6], sm[:])
	off += 6
	netutil.PutLE32(b[off:off+4], newIP)
	off += 4
	netutil.PutLE32(b[off:off+4], newNetmask)
	off += 4
	netutil.PutLE32(b[off:off+4], 0xFFFFFFFF) // slave_default_gateway
	return b
}

func newTestEngine(t *testing.T, ownMAC [6]byte, ownIP uint32, allowIPSet bool) (*Engine, *netmock.NetIface, netdev.UDPHandle) {
	t.Helper()
	nm := netmock.New()
	nm.SetMAC(1, net.HardwareAddr(ownMAC[:]))
	nm.SetNetmask(1, 0xFFFFFF00)
	h, err := nm.UDPOpen(net.IPv4zero, slmp.Port)
	require.NoError(t, err)
	e, err := New(Config{
		VendorCode:       0x1234,
		ModelCode:        0xABCDEF01,
		EquipmentVer:     1,
		IfIndex:          1,
		OwnMAC:           ownMAC,
		OwnIP:            ownIP,
		IPSettingAllowed: allowIPSet,
	}, nm, h)
	require.NoError(t, err)
	return e, nm, h
}

func TestEngine_NodeSearch_RespondsAfterMACDerivedDelay(t *testing.T) {
	ownMAC := [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x03} // b4=0 b5=3 -> bit0,bit1 set -> 512+256=768ms
	ownIP := uint32(0x0A000064)
	masterIP := uint32(0xC0A80001)
	masterMAC := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}

	e, nm, h := newTestEngine(t, ownMAC, ownIP, true)

	var gotNodeSearch bool
	e.cfg.Callbacks.NodeSearch = func(mip uint32, mmac [6]byte) { gotNodeSearch = true }

	req := buildNodeSearchReq(42, masterMAC, masterIP)
	nm.Deliver(h, req, netutil.Uint32ToIP(masterIP), 61451, nil, 1)

	e.Periodic(0)
	require.True(t, gotNodeSearch)
	require.Empty(t, nm.Sent, "response must wait for the delay")

	e.Periodic(768_000 - 1)
	require.Empty(t, nm.Sent)

	e.Periodic(768_000)
	require.Len(t, nm.Sent, 1)
	require.Equal(t, slmp.Port, nm.Sent[0].DstPort)
}

func TestEngine_SetIP_DeniedWhenNotAllowed(t *testing.T) {
	ownMAC := [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	ownIP := uint32(0x0A000064)
	masterIP := uint32(0xC0A80001)
	masterMAC := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}

	e, nm, h := newTestEngine(t, ownMAC, ownIP, false)

	var gotSetIP bool
	var allowed, succeeded bool
	e.cfg.Callbacks.SetIP = func(a, s bool) { gotSetIP = true; allowed = a; succeeded = s }

	req := buildSetIPReq(7, masterMAC, masterIP, ownMAC, 0x0A0000C8, 0xFFFFFF00)
	nm.Deliver(h, req, netutil.Uint32ToIP(masterIP), 61451, nil, 1)

	e.Periodic(0)

	require.True(t, gotSetIP)
	require.False(t, allowed)
	require.False(t, succeeded)
	require.Equal(t, ownIP, e.cfg.OwnIP, "ip must not change when denied")
	require.Len(t, nm.Sent, 1)
}

func TestEngine_SetIP_AppliedWhenAllowed(t *testing.T) {
	ownMAC := [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	ownIP := uint32(0x0A000064)
	masterIP := uint32(0xC0A80001)
	masterMAC := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	newIP := uint32(0x0A0000C8)

	e, nm, h := newTestEngine(t, ownMAC, ownIP, true)

	var appliedTo uint32
	e.cfg.OnIPApplied = func(ip uint32) { appliedTo = ip }

	req := buildSetIPReq(7, masterMAC, masterIP, ownMAC, newIP, 0xFFFFFF00)
	nm.Deliver(h, req, netutil.Uint32ToIP(masterIP), 61451, nil, 1)

	e.Periodic(0)

	require.Equal(t, newIP, appliedTo)
	require.Equal(t, newIP, e.cfg.OwnIP)
	require.Len(t, nm.Sent, 1)
}

func TestEngine_NodeSearch_IgnoresMismatchedSourceIP(t *testing.T) {
	ownMAC := [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	ownIP := uint32(0x0A000064)
	masterIP := uint32(0xC0A80001)
	spoofedSrc := uint32(0xC0A80099)
	masterMAC := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}

	e, nm, h := newTestEngine(t, ownMAC, ownIP, true)

	req := buildNodeSearchReq(1, masterMAC, masterIP)
	nm.Deliver(h, req, netutil.Uint32ToIP(spoofedSrc), 61451, nil, 1)

	e.Periodic(0)
	e.Periodic(10_000_000)
	require.Empty(t, nm.Sent)
}
