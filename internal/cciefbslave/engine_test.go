package cciefbslave

import (
	"net"
	"testing"

	"github.com/rtlabs-com/c-link-sub001/internal/cciefb"
	"github.com/rtlabs-com/c-link-sub001/internal/cyclicstore"
	"github.com/rtlabs-com/c-link-sub001/internal/memarea"
	"github.com/rtlabs-com/c-link-sub001/internal/netdev"
	"github.com/rtlabs-com/c-link-sub001/internal/netmock"
	"github.com/rtlabs-com/c-link-sub001/internal/netutil"
	"github.com/stretchr/testify/require"
)

const stationReqSize = 4 + memarea.BitAreaBytes + memarea.WordsPerArea*2

// reqOpts configures buildRequest's fields that individual tests care
// about; anything left zero takes the default below.
type reqOpts struct {
	masterID        uint32
	groupNo         uint8
	frameSequenceNo uint16
	timeoutMs       uint16
	parallelOff     uint16
	parameterNo     uint16
	totalOccupied   uint16
	ownSlot         int // index within stations where SlaveID == ownIP
	ownIP           uint32
	numStations     int
	transmitBit     uint16 // cyclic_transmission_state
}

func buildRequest(o reqOpts) []byte {
	n := o.numStations
	if n == 0 {
		n = 1
	}
	b := make([]byte, cciefb.ReqHeaderSize+n*stationReqSize)
	netutil.PutBE16(b[0:2], 0x5400)
	netutil.PutLE16(b[2:4], 1) // serial
	b[7] = 0xFF                // unit_number
	netutil.PutLE16(b[8:10], 0x03FF)
	netutil.PutLE16(b[11:13], uint16(len(b)-13))
	netutil.PutLE16(b[15:17], 0x0081) // command
	netutil.PutLE16(b[17:19], 0x0000) // sub_command
	netutil.PutLE16(b[19:21], 2)      // protocol_ver
	netutil.PutLE32(b[35:39], o.masterID)
	netutil.PutLE16(b[39:41], uint16(o.groupNo))
	netutil.PutLE16(b[41:43], o.frameSequenceNo)
	netutil.PutLE16(b[43:45], o.timeoutMs)
	netutil.PutLE16(b[45:47], o.parallelOff)
	netutil.PutLE16(b[47:49], o.parameterNo)
	netutil.PutLE16(b[49:51], o.totalOccupied)
	netutil.PutLE16(b[51:53], o.transmitBit)

	for j := 0; j < n; j++ {
		off := cciefb.ReqHeaderSize + stationReqSize*j
		id := uint32(0x0A000001 + j)
		if j == o.ownSlot {
			id = o.ownIP
		}
		netutil.PutLE32(b[off:off+4], id)
	}
	return b
}

func newTestEngine(t *testing.T, ownIP uint32, n int) (*Engine, *netmock.NetIface, netdev.UDPHandle) {
	t.Helper()
	nm := netmock.New()
	store := cyclicstore.New(n)
	h, err := nm.UDPOpen(net.IPv4zero, cciefb.Port)
	require.NoError(t, err)
	e, err := New(Config{
		VendorCode:          0x1234,
		ModelCode:           0xABCDEF01,
		EquipmentVer:        1,
		NumOccupiedStations: uint16(n),
		OwnIP:               ownIP,
	}, store, nm, h)
	require.NoError(t, err)
	e.Init()
	return e, nm, h
}

// defaultReq returns a single-station request addressed to ownIP, with a
// generous timeout so watchdog tests can control expiry precisely.
func defaultReq(ownIP, masterID uint32, frameSeq uint16) reqOpts {
	return reqOpts{
		masterID:        masterID,
		groupNo:         1,
		frameSequenceNo: frameSeq,
		timeoutMs:       100,
		parallelOff:     3,
		parameterNo:     7,
		totalOccupied:   1,
		ownSlot:         0,
		ownIP:           ownIP,
		numStations:     1,
	}
}

func TestEngine_FirstConnection_EntersMasterControl(t *testing.T) {
	ownIP := uint32(0x0A000064)
	masterID := uint32(0xC0A80001)
	e, nm, h := newTestEngine(t, ownIP, 1)

	req := buildRequest(defaultReq(ownIP, masterID, 1))
	nm.Deliver(h, req, netutil.Uint32ToIP(masterID), 61450, nil, 0)

	e.Tick(1000)

	require.Equal(t, MasterControl, e.State())
	require.True(t, e.MasterConnection().Valid)
	require.Equal(t, masterID, e.MasterConnection().MasterID)
	require.Len(t, nm.Sent, 1)
	require.Equal(t, cciefb.Port, nm.Sent[0].DstPort)
}

func TestEngine_StaleSession_TimesOutToMasterNone(t *testing.T) {
	ownIP := uint32(0x0A000064)
	masterID := uint32(0xC0A80001)
	e, nm, h := newTestEngine(t, ownIP, 1)

	req := buildRequest(defaultReq(ownIP, masterID, 1))
	nm.Deliver(h, req, netutil.Uint32ToIP(masterID), 61450, nil, 0)
	e.Tick(0)
	require.Equal(t, MasterControl, e.State())

	// deadline = 100ms * 1000 * 3 = 300_000us
	e.Tick(300_001)
	require.Equal(t, MasterNone, e.State())
	require.False(t, e.MasterConnection().Valid)
}

func TestEngine_IntruderMaster_RejectedWithMasterDuplication(t *testing.T) {
	ownIP := uint32(0x0A000064)
	masterID := uint32(0xC0A80001)
	intruderID := uint32(0xC0A80099)
	e, nm, h := newTestEngine(t, ownIP, 1)

	nm.Deliver(h, buildRequest(defaultReq(ownIP, masterID, 1)), netutil.Uint32ToIP(masterID), 61450, nil, 0)
	e.Tick(0)
	require.Equal(t, MasterControl, e.State())

	nm.Deliver(h, buildRequest(defaultReq(ownIP, intruderID, 1)), netutil.Uint32ToIP(intruderID), 61450, nil, 0)
	e.Tick(1000)

	// still controlled by the original master
	require.Equal(t, MasterControl, e.State())
	require.Equal(t, masterID, e.MasterConnection().MasterID)
	require.Len(t, nm.Sent, 2)
	last := nm.Sent[1]
	require.True(t, last.DstIP.Equal(netutil.Uint32ToIP(intruderID)))
}

func TestEngine_WrongOccupiedCount_RejectedAndStaysMasterNone(t *testing.T) {
	ownIP := uint32(0x0A000064)
	masterID := uint32(0xC0A80001)
	e, nm, h := newTestEngine(t, ownIP, 2) // configured for 2 stations

	o := defaultReq(ownIP, masterID, 1)
	o.numStations = 1
	o.totalOccupied = 1 // master thinks only 1 station total: doesn't fit our 2
	nm.Deliver(h, buildRequest(o), netutil.Uint32ToIP(masterID), 61450, nil, 0)
	e.Tick(0)

	require.Equal(t, MasterNone, e.State())
	require.Len(t, nm.Sent, 1)
}

func TestEngine_DisableSlave_FromMasterNone_GoesDirectlyToDisabled(t *testing.T) {
	e, _, _ := newTestEngine(t, 0x0A000064, 1)
	require.Equal(t, MasterNone, e.State())

	e.DisableSlave(false)
	require.Equal(t, SlaveDisabled, e.State())

	e.ReenableSlave()
	require.Equal(t, MasterNone, e.State())
}

func TestEngine_DisableSlave_FromMasterControl_WaitsThenDisables(t *testing.T) {
	ownIP := uint32(0x0A000064)
	masterID := uint32(0xC0A80001)
	e, nm, h := newTestEngine(t, ownIP, 1)

	nm.Deliver(h, buildRequest(defaultReq(ownIP, masterID, 1)), netutil.Uint32ToIP(masterID), 61450, nil, 0)
	e.Tick(0)
	require.Equal(t, MasterControl, e.State())

	e.DisableSlave(true)
	require.Equal(t, WaitDisablingSlave, e.State())
	require.True(t, e.MasterConnection().Valid, "connection stays valid while waiting")

	// further cyclic frames get the sticky error endcode, not dropped
	nm.Deliver(h, buildRequest(defaultReq(ownIP, masterID, 2)), netutil.Uint32ToIP(masterID), 61450, nil, 0)
	e.Tick(1000)
	require.Equal(t, WaitDisablingSlave, e.State())

	// watchdog base advanced to 1000us by the sticky-frame tick above
	e.Tick(300_001_500)
	require.Equal(t, SlaveDisabled, e.State())
}

func TestEngine_MalformedFrame_DroppedSilently(t *testing.T) {
	e, nm, h := newTestEngine(t, 0x0A000064, 1)
	nm.Deliver(h, []byte{0x01, 0x02}, net.IPv4(10, 0, 0, 1), 61450, nil, 0)
	e.Tick(0)
	require.Equal(t, MasterNone, e.State())
	require.Empty(t, nm.Sent)
}

func TestFilterMasterRunningState(t *testing.T) {
	require.Equal(t, MasterRunningState{}, FilterMasterRunningState(false, 2, 1))

	s := FilterMasterRunningState(true, 1, 1)
	require.True(t, s.Running)
	require.False(t, s.StoppedByUser)

	s = FilterMasterRunningState(true, 2, 2)
	require.False(t, s.Running)
	require.True(t, s.StoppedByUser)

	s = FilterMasterRunningState(true, 2, 3)
	require.True(t, s.Running)
}
