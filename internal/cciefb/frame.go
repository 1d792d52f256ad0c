// Package cciefb implements the CC-Link IE Field Basic cyclic-transmission
// codec: parsing and building the fixed-layout request/response frames
// exchanged between master and slave on UDP port 61450.
package cciefb

import "github.com/rtlabs-com/c-link-sub001/internal/memarea"

// Port is the UDP port CCIEFB cyclic transmission runs on.
const Port = 61450

// Endcodes carried in the response common header.
const (
	EndCodeSuccess                 uint16 = 0x0000
	EndCodeSlaveError              uint16 = 0xCFF0
	EndCodeSlaveRequestsDisconnect uint16 = 0xCFFF
	EndCodeWrongNumberOccupied     uint16 = 0xCFE0
	EndCodeMasterDuplication       uint16 = 0xCFE1
)

// Fixed constant field values enforced by validation.
const (
	sub1Request  uint16 = 0x5400
	sub1Response uint16 = 0xD400

	networkNumber uint8  = 0x00
	unitNumber    uint8  = 0xFF
	ioNumber      uint16 = 0x03FF
	extension     uint8  = 0x00

	// See DESIGN.md: CCIEFB cyclic request command/sub_command constants.
	cyclicCommand    uint16 = 0x0081
	cyclicSubCommand uint16 = 0x0000
)

// Byte sizes, see DESIGN.md "Resolved: CCIEFB wire-frame byte layout".
const (
	commonReqSize  = 19
	cyclicReqSize  = 46 // includes 12 bytes of trailing padding
	ReqHeaderSize  = commonReqSize + cyclicReqSize // 65

	commonRespSize = 15
	cyclicRespSize = 56 // includes 30 bytes of trailing reserved
	RespHeaderSize = commonRespSize + cyclicRespSize // 71

	stationReqSize  = 4 + memarea.BitAreaBytes + memarea.WordsPerArea*2 // slave_id + RY + RWw = 76
	stationRespSize = memarea.BitAreaBytes + memarea.WordsPerArea*2     // RX + RWr = 72
)

// MaxOccupiedStations bounds both slave_total_occupied_count in a request
// and num_occupied_stations in a slave's configuration.
const MaxOccupiedStations = 16

// StationData is one station's slot within a parsed request: its target IP
// and its RY/RWw areas.
type StationData struct {
	SlaveID uint32
	RY      memarea.BitArea
	RWw     memarea.WordArea
}

// Request is a fully parsed and validated cyclic request frame.
type Request struct {
	Serial                  uint16
	ProtocolVer             uint16
	Reserved                uint16
	CyclicInfoOffset        uint16
	MasterLocalUnitInfo     uint16
	ClockInfo               uint64
	MasterID                uint32
	GroupNo                 uint8
	FrameSequenceNo         uint16
	TimeoutValueMs          uint16
	ParallelOffCount        uint16
	ParameterNo             uint16
	SlaveTotalOccupiedCount uint16
	CyclicTransmissionState uint16
	Stations                []StationData
}

// Response is a cyclic response frame ready to be built onto the wire.
type Response struct {
	Serial               uint16
	EndCode              uint16
	VendorCode           uint16
	ModelCode            uint32
	EquipmentVer         uint16
	SlaveProtocolVer     uint16
	SlaveLocalUnitInfo   uint16
	SlaveErrCode         uint16
	LocalManagementInfo  uint32
	SlaveID              uint32
	GroupNo              uint8
	FrameSequenceNo      uint16
	RX                   []memarea.BitArea
	RWr                  []memarea.WordArea
}
