package slmp

import (
	"errors"
	"fmt"

	"github.com/rtlabs-com/c-link-sub001/internal/netutil"
)

var (
	ErrShortFrame  = errors.New("slmp: frame shorter than expected")
	ErrBadConstant = errors.New("slmp: fixed-constant field mismatch")
	ErrBadLength   = errors.New("slmp: length field does not match frame size")
	ErrBadCommand  = errors.New("slmp: unexpected command/sub_command")
	ErrBadNetmask  = errors.New("slmp: netmask is not a valid contiguous prefix")
)

func checkCommonRequest(b []byte, want int, wantCmd uint16) (serial uint16, err error) {
	if len(b) != want {
		return 0, fmt.Errorf("%w: got %d bytes, need %d", ErrShortFrame, len(b), want)
	}
	if netutil.BE16(b[0:2]) != sub1Request {
		return 0, fmt.Errorf("%w: sub1", ErrBadConstant)
	}
	if netutil.LE16(b[4:6]) != 0 {
		return 0, fmt.Errorf("%w: sub2", ErrBadConstant)
	}
	if b[6] != networkNumber || b[7] != unitNumber {
		return 0, fmt.Errorf("%w: network_number/unit_number", ErrBadConstant)
	}
	if netutil.LE16(b[8:10]) != ioNumber || b[10] != extension {
		return 0, fmt.Errorf("%w: io_number/extension", ErrBadConstant)
	}
	length := netutil.LE16(b[11:13])
	if int(length)+13 != len(b) {
		return 0, fmt.Errorf("%w: length=%d frame=%d", ErrBadLength, length, len(b))
	}
	if netutil.LE16(b[13:15]) != 0 {
		return 0, fmt.Errorf("%w: timer", ErrBadConstant)
	}
	if netutil.LE16(b[15:17]) != wantCmd || netutil.LE16(b[17:19]) != SubCommand {
		return 0, fmt.Errorf("%w: got command=%#04x sub_command=%#04x", ErrBadCommand, netutil.LE16(b[15:17]), netutil.LE16(b[17:19]))
	}
	return netutil.LE16(b[2:4]), nil
}

func putCommonRequest(b []byte, serial, cmd uint16) {
	netutil.PutBE16(b[0:2], sub1Request)
	netutil.PutLE16(b[2:4], serial)
	netutil.PutLE16(b[4:6], 0)
	b[6] = networkNumber
	b[7] = unitNumber
	netutil.PutLE16(b[8:10], ioNumber)
	b[10] = extension
	netutil.PutLE16(b[11:13], uint16(len(b)-13))
	netutil.PutLE16(b[13:15], 0)
	netutil.PutLE16(b[15:17], cmd)
	netutil.PutLE16(b[17:19], SubCommand)
}

func putCommonResponse(b []byte, serial, endcode uint16) {
	netutil.PutBE16(b[0:2], sub1Response)
	netutil.PutLE16(b[2:4], serial)
	netutil.PutLE16(b[4:6], 0)
	b[6] = networkNumber
	b[7] = unitNumber
	netutil.PutLE16(b[8:10], ioNumber)
	b[10] = extension
	netutil.PutLE16(b[11:13], uint16(len(b)-13))
	netutil.PutLE16(b[13:15], endcode)
}

// ParseNodeSearchRequest validates and decodes a node-search request.
func ParseNodeSearchRequest(b []byte) (*NodeSearchRequest, error) {
	serial, err := checkCommonRequest(b, NodeSearchReqSize, CommandNodeSearch)
	if err != nil {
		return nil, err
	}
	r := &NodeSearchRequest{Serial: serial}
	copy(r.MasterMAC[:], b[reqHeaderSize:reqHeaderSize+6])
	r.MasterMAC = netutil.ReverseMAC(r.MasterMAC)
	r.MasterIP = netutil.LE32(b[reqHeaderSize+6 : reqHeaderSize+10])
	return r, nil
}

// BuildNodeSearchResponse serializes resp into a fresh response datagram.
func BuildNodeSearchResponse(resp *NodeSearchResponse) []byte {
	b := make([]byte, NodeSearchRespSize)
	putCommonResponse(b, resp.Serial, EndCodeSuccess)

	off := respHeaderSize
	mm := netutil.ReverseMAC(resp.MasterMAC)
	copy(b[off:off+6], mm[:])
	off += 6
	netutil.PutLE32(b[off:off+4], resp.MasterIP)
	off += 4
	b[off] = addressSize
	off++
	b[off] = protocolID
	off++
	b[off] = slaveHostnameSize
	off++
	sm := netutil.ReverseMAC(resp.SlaveMAC)
	copy(b[off:off+6], sm[:])
	off += 6
	netutil.PutLE32(b[off:off+4], resp.SlaveIP)
	off += 4
	netutil.PutLE32(b[off:off+4], resp.SlaveNetmask)
	off += 4
	netutil.PutLE32(b[off:off+4], slaveDefaultGW)
	off += 4
	netutil.PutLE16(b[off:off+2], resp.SlaveStatus)
	off += 2
	netutil.PutLE16(b[off:off+2], resp.VendorCode)
	off += 2
	netutil.PutLE32(b[off:off+4], resp.ModelCode)
	off += 4
	netutil.PutLE16(b[off:off+2], resp.EquipmentVer)
	off += 2
	netutil.PutLE32(b[off:off+4], targetIP)
	off += 4
	netutil.PutLE16(b[off:off+2], targetPort)
	// remaining 4 bytes left zeroed: reserved.
	return b
}

// ParseSetIPRequest validates and decodes a set-IP request. The new netmask
// is checked here with netutil.IsNetmaskValid; an invalid one yields
// ErrBadNetmask.
func ParseSetIPRequest(b []byte) (*SetIPRequest, error) {
	serial, err := checkCommonRequest(b, SetIPReqSize, CommandSetIP)
	if err != nil {
		return nil, err
	}
	off := reqHeaderSize
	r := &SetIPRequest{Serial: serial}
	copy(r.MasterMAC[:], b[off:off+6])
	r.MasterMAC = netutil.ReverseMAC(r.MasterMAC)
	off += 6
	r.MasterIP = netutil.LE32(b[off : off+4])
	off += 4
	if b[off] != addressSize || b[off+1] != protocolID || b[off+2] != slaveHostnameSize {
		return nil, fmt.Errorf("%w: address_size/protocol_id/slave_hostname_size", ErrBadConstant)
	}
	off += 3
	copy(r.SlaveMAC[:], b[off:off+6])
	r.SlaveMAC = netutil.ReverseMAC(r.SlaveMAC)
	off += 6
	r.SlaveNewIP = netutil.LE32(b[off : off+4])
	off += 4
	r.SlaveNewNetmask = netutil.LE32(b[off : off+4])
	off += 4
	if netutil.LE32(b[off:off+4]) != slaveDefaultGW {
		return nil, fmt.Errorf("%w: slave_default_gateway", ErrBadConstant)
	}
	if !netutil.IsNetmaskValid(r.SlaveNewNetmask) {
		return nil, ErrBadNetmask
	}
	return r, nil
}

// BuildSetIPResponse serializes a set-IP success response.
func BuildSetIPResponse(resp *SetIPResponse) []byte {
	b := make([]byte, SetIPRespSize)
	putCommonResponse(b, resp.Serial, EndCodeSuccess)
	mm := netutil.ReverseMAC(resp.MasterMAC)
	copy(b[respHeaderSize:respHeaderSize+6], mm[:])
	return b
}

// BuildErrorResponse serializes the generic SLMP error response. The slave
// engine uses it for the set-IP-denied path, its only rejection that
// answers on the wire, mirroring the original's single
// cl_slmp_prepare_error_response_frame builder (see SPEC_FULL.md §7).
func BuildErrorResponse(resp *ErrorResponse) []byte {
	b := make([]byte, ErrorRespSize)
	putCommonResponse(b, resp.Serial, resp.EndCode)
	netutil.PutLE16(b[respHeaderSize:respHeaderSize+2], resp.Command)
	netutil.PutLE16(b[respHeaderSize+2:respHeaderSize+4], resp.SubCommand)
	return b
}
