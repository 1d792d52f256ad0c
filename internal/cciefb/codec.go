package cciefb

import (
	"errors"
	"fmt"

	"github.com/rtlabs-com/c-link-sub001/internal/memarea"
	"github.com/rtlabs-com/c-link-sub001/internal/netutil"
)

// ErrShortFrame and friends are returned by ParseRequest for malformed
// wire data. Per the error-handling design these are always treated as a
// silent drop by callers — they exist for unit tests to assert against,
// not for user-facing reporting.
var (
	ErrShortFrame    = errors.New("cciefb: frame shorter than header")
	ErrBadConstant   = errors.New("cciefb: fixed-constant field mismatch")
	ErrBadLength     = errors.New("cciefb: length field does not match frame size")
	ErrBadOccupied   = errors.New("cciefb: slave_total_occupied_count out of range")
	ErrBadGroup      = errors.New("cciefb: group_no out of range")
	ErrBadProtoVer   = errors.New("cciefb: protocol_ver out of range")
	ErrBadMasterInfo = errors.New("cciefb: master_local_unit_info invalid for protocol_ver 1")
	ErrZeroMasterID  = errors.New("cciefb: master_id is zero")
)

// ParseRequest validates and decodes a cyclic request datagram.
func ParseRequest(b []byte) (*Request, error) {
	if len(b) < ReqHeaderSize {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d", ErrShortFrame, len(b), ReqHeaderSize)
	}
	if netutil.BE16(b[0:2]) != sub1Request {
		return nil, fmt.Errorf("%w: sub1", ErrBadConstant)
	}
	if netutil.LE16(b[4:6]) != 0 {
		return nil, fmt.Errorf("%w: sub2", ErrBadConstant)
	}
	if b[6] != networkNumber {
		return nil, fmt.Errorf("%w: network_number", ErrBadConstant)
	}
	if b[7] != unitNumber {
		return nil, fmt.Errorf("%w: unit_number", ErrBadConstant)
	}
	if netutil.LE16(b[8:10]) != ioNumber {
		return nil, fmt.Errorf("%w: io_number", ErrBadConstant)
	}
	if b[10] != extension {
		return nil, fmt.Errorf("%w: extension", ErrBadConstant)
	}
	length := netutil.LE16(b[11:13])
	if int(length)+13 != len(b) {
		return nil, fmt.Errorf("%w: length=%d frame=%d", ErrBadLength, length, len(b))
	}
	if netutil.LE16(b[13:15]) != 0 {
		return nil, fmt.Errorf("%w: timer", ErrBadConstant)
	}
	if netutil.LE16(b[15:17]) != cyclicCommand || netutil.LE16(b[17:19]) != cyclicSubCommand {
		return nil, fmt.Errorf("%w: command/sub_command", ErrBadConstant)
	}

	r := &Request{
		Serial:                  netutil.LE16(b[2:4]),
		ProtocolVer:             netutil.LE16(b[19:21]),
		Reserved:                netutil.LE16(b[21:23]),
		CyclicInfoOffset:        netutil.LE16(b[23:25]),
		MasterLocalUnitInfo:     netutil.LE16(b[25:27]),
		ClockInfo:               netutil.LE64(b[27:35]),
		MasterID:                netutil.LE32(b[35:39]),
		GroupNo:                 uint8(netutil.LE16(b[39:41])),
		FrameSequenceNo:         netutil.LE16(b[41:43]),
		TimeoutValueMs:          netutil.LE16(b[43:45]),
		ParallelOffCount:        netutil.LE16(b[45:47]),
		ParameterNo:             netutil.LE16(b[47:49]),
		SlaveTotalOccupiedCount: netutil.LE16(b[49:51]),
		CyclicTransmissionState: netutil.LE16(b[51:53]),
	}

	if r.ProtocolVer != 1 && r.ProtocolVer != 2 {
		return nil, fmt.Errorf("%w: %d", ErrBadProtoVer, r.ProtocolVer)
	}
	if r.ProtocolVer == 1 && r.MasterLocalUnitInfo > 1 {
		return nil, ErrBadMasterInfo
	}
	if r.MasterID == 0 {
		return nil, ErrZeroMasterID
	}
	if r.GroupNo < 1 || r.GroupNo > 64 {
		return nil, fmt.Errorf("%w: %d", ErrBadGroup, r.GroupNo)
	}
	k := int(r.SlaveTotalOccupiedCount)
	if k < 1 || k > MaxOccupiedStations {
		return nil, fmt.Errorf("%w: %d", ErrBadOccupied, k)
	}

	if len(b) != ReqHeaderSize+k*stationReqSize {
		return nil, fmt.Errorf("%w: length=%d frame=%d does not match K=%d", ErrBadLength, length, len(b), k)
	}

	idOff := ReqHeaderSize
	ryOff := idOff + 4*k
	rwwOff := ryOff + memarea.BitAreaBytes*k

	r.Stations = make([]StationData, k)
	for j := 0; j < k; j++ {
		r.Stations[j].SlaveID = netutil.LE32(b[idOff+4*j : idOff+4*j+4])
		copy(r.Stations[j].RY[:], b[ryOff+memarea.BitAreaBytes*j:ryOff+memarea.BitAreaBytes*(j+1)])
		wordsBase := rwwOff + memarea.WordsPerArea*2*j
		for w := 0; w < memarea.WordsPerArea; w++ {
			r.Stations[j].RWw[w] = netutil.LE16(b[wordsBase+2*w : wordsBase+2*w+2])
		}
	}
	return r, nil
}

// BuildResponse serializes resp into a fresh response datagram. The caller
// must ensure len(resp.RX) == len(resp.RWr) == N (num_occupied_stations).
func BuildResponse(resp *Response) []byte {
	n := len(resp.RX)
	size := RespHeaderSize + n*stationRespSize
	b := make([]byte, size)

	netutil.PutBE16(b[0:2], sub1Response)
	netutil.PutLE16(b[2:4], resp.Serial)
	netutil.PutLE16(b[4:6], 0)
	b[6] = networkNumber
	b[7] = unitNumber
	netutil.PutLE16(b[8:10], ioNumber)
	b[10] = extension
	netutil.PutLE16(b[11:13], uint16(size-13))
	netutil.PutLE16(b[13:15], resp.EndCode)

	netutil.PutLE16(b[15:17], resp.VendorCode)
	netutil.PutLE32(b[17:21], resp.ModelCode)
	netutil.PutLE16(b[21:23], resp.EquipmentVer)
	netutil.PutLE16(b[23:25], resp.SlaveProtocolVer)
	netutil.PutLE16(b[25:27], resp.SlaveLocalUnitInfo)
	netutil.PutLE16(b[27:29], resp.SlaveErrCode)
	netutil.PutLE32(b[29:33], resp.LocalManagementInfo)
	netutil.PutLE32(b[33:37], resp.SlaveID)
	netutil.PutLE16(b[37:39], uint16(resp.GroupNo))
	netutil.PutLE16(b[39:41], resp.FrameSequenceNo)
	// b[41:71] left zeroed: reserved.

	rxOff := RespHeaderSize
	rwrOff := rxOff + memarea.BitAreaBytes*n
	for j := 0; j < n; j++ {
		copy(b[rxOff+memarea.BitAreaBytes*j:rxOff+memarea.BitAreaBytes*(j+1)], resp.RX[j][:])
		wordsBase := rwrOff + memarea.WordsPerArea*2*j
		for w := 0; w < memarea.WordsPerArea; w++ {
			netutil.PutLE16(b[wordsBase+2*w:wordsBase+2*w+2], resp.RWr[j][w])
		}
	}
	return b
}
