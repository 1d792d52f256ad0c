package slmp

import (
	"testing"

	"github.com/rtlabs-com/c-link-sub001/internal/netutil"
	"github.com/stretchr/testify/require"
)

func buildNodeSearchRequest(serial uint16, masterMAC [6]byte, masterIP uint32) []byte {
	b := make([]byte, NodeSearchReqSize)
	putCommonRequest(b, serial, CommandNodeSearch)
	rm := netutil.ReverseMAC(masterMAC)
	copy(b[reqHeaderSize:reqHeaderSize+6], rm[:])
	netutil.PutLE32(b[reqHeaderSize+6:reqHeaderSize+10], masterIP)
	return b
}

func buildSetIPRequest(serial uint16, masterMAC, slaveMAC [6]byte, masterIP, newIP, newMask uint32) []byte {
	b := make([]byte, SetIPReqSize)
	putCommonRequest(b, serial, CommandSetIP)
	off := reqHeaderSize
	rm := netutil.ReverseMAC(masterMAC)
	copy(b[off:off+6], rm[:])
	off += 6
	netutil.PutLE32(b[off:off+4], masterIP)
	off += 4
	b[off], b[off+1], b[off+2] = addressSize, protocolID, slaveHostnameSize
	off += 3
	rs := netutil.ReverseMAC(slaveMAC)
	copy(b[off:off+6], rs[:])
	off += 6
	netutil.PutLE32(b[off:off+4], newIP)
	off += 4
	netutil.PutLE32(b[off:off+4], newMask)
	off += 4
	netutil.PutLE32(b[off:off+4], slaveDefaultGW)
	return b
}

func TestParseNodeSearchRequestRoundTrip(t *testing.T) {
	mac := [6]byte{0x28, 0xE9, 0x8E, 0x2F, 0xE4, 0xB7}
	b := buildNodeSearchRequest(0x1234, mac, 0xC0A80001)
	r, err := ParseNodeSearchRequest(b)
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), r.Serial)
	require.Equal(t, mac, r.MasterMAC)
	require.Equal(t, uint32(0xC0A80001), r.MasterIP)
}

func TestParseNodeSearchRequestBadCommand(t *testing.T) {
	b := buildNodeSearchRequest(1, [6]byte{}, 0)
	netutil.PutLE16(b[15:17], CommandSetIP)
	_, err := ParseNodeSearchRequest(b)
	require.ErrorIs(t, err, ErrBadCommand)
}

func TestParseNodeSearchRequestShort(t *testing.T) {
	_, err := ParseNodeSearchRequest(make([]byte, NodeSearchReqSize-1))
	require.ErrorIs(t, err, ErrShortFrame)
}

func TestBuildNodeSearchResponseSizeAndFields(t *testing.T) {
	resp := &NodeSearchResponse{
		Serial:       0x1234,
		SlaveMAC:     [6]byte{1, 2, 3, 4, 5, 6},
		SlaveIP:      0xC0A800C9,
		SlaveNetmask: 0xFFFFFF00,
		VendorCode:   0x1067,
		ModelCode:    0x00001234,
		EquipmentVer: 1,
	}
	b := BuildNodeSearchResponse(resp)
	require.Len(t, b, NodeSearchRespSize)
	require.Equal(t, sub1Response, netutil.BE16(b[0:2]))
	require.Equal(t, uint16(len(b)-13), netutil.LE16(b[11:13]))
}

func TestParseSetIPRequestRoundTrip(t *testing.T) {
	masterMAC := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	slaveMAC := [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	b := buildSetIPRequest(7, masterMAC, slaveMAC, 0xC0A80001, 0xC0A800C9, 0xFFFFFF00)
	r, err := ParseSetIPRequest(b)
	require.NoError(t, err)
	require.Equal(t, uint16(7), r.Serial)
	require.Equal(t, masterMAC, r.MasterMAC)
	require.Equal(t, slaveMAC, r.SlaveMAC)
	require.Equal(t, uint32(0xC0A800C9), r.SlaveNewIP)
	require.Equal(t, uint32(0xFFFFFF00), r.SlaveNewNetmask)
}

func TestParseSetIPRequestInvalidNetmask(t *testing.T) {
	b := buildSetIPRequest(1, [6]byte{}, [6]byte{}, 0, 0xC0A800C9, 0x0000FFFF)
	_, err := ParseSetIPRequest(b)
	require.ErrorIs(t, err, ErrBadNetmask)
}

func TestBuildSetIPResponseSize(t *testing.T) {
	b := BuildSetIPResponse(&SetIPResponse{Serial: 5, MasterMAC: [6]byte{1, 1, 1, 1, 1, 1}})
	require.Len(t, b, SetIPRespSize)
	require.Equal(t, uint16(5), netutil.LE16(b[2:4]))
}

func TestBuildErrorResponseCarriesCommand(t *testing.T) {
	b := BuildErrorResponse(&ErrorResponse{
		Serial:     9,
		Command:    CommandSetIP,
		SubCommand: SubCommand,
		EndCode:    EndCodeCommandDenied,
	})
	require.Len(t, b, ErrorRespSize)
	require.Equal(t, uint16(EndCodeCommandDenied), netutil.LE16(b[13:15]))
	require.Equal(t, CommandSetIP, netutil.LE16(b[15:17]))
}
