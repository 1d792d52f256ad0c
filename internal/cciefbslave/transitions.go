package cciefbslave

import (
	"github.com/rtlabs-com/c-link-sub001/internal/cciefb"
)

// buildNormalResponse assembles a success response from the store's
// current RX/RWr state.
func (e *Engine) buildNormalResponse(req *cciefb.Request, groupNo uint8) []byte {
	resp := &cciefb.Response{
		Serial:              req.Serial,
		EndCode:             cciefb.EndCodeSuccess,
		VendorCode:          e.cfg.VendorCode,
		ModelCode:           e.cfg.ModelCode,
		EquipmentVer:        e.cfg.EquipmentVer,
		SlaveProtocolVer:    req.ProtocolVer,
		SlaveLocalUnitInfo:  uint16(e.appStatus),
		SlaveErrCode:        e.slaveErrCode,
		LocalManagementInfo: e.localManagementInfo,
		SlaveID:             e.cfg.OwnIP,
		GroupNo:             groupNo,
		FrameSequenceNo:     req.FrameSequenceNo,
		RX:                  e.store.RXAreas(),
		RWr:                 e.store.RWrAreas(),
	}
	return cciefb.BuildResponse(resp)
}

// buildErrorResponse assembles an error response carrying endcode, still
// sized for our own N occupied stations (scenarios 3/4 size identically to
// the success response).
func (e *Engine) buildErrorResponse(req *cciefb.Request, groupNo uint8, endcode uint16) []byte {
	resp := &cciefb.Response{
		Serial:              req.Serial,
		EndCode:             endcode,
		VendorCode:          e.cfg.VendorCode,
		ModelCode:           e.cfg.ModelCode,
		EquipmentVer:        e.cfg.EquipmentVer,
		SlaveProtocolVer:    req.ProtocolVer,
		SlaveLocalUnitInfo:  uint16(e.appStatus),
		SlaveErrCode:        e.slaveErrCode,
		LocalManagementInfo: e.localManagementInfo,
		SlaveID:             e.cfg.OwnIP,
		GroupNo:             groupNo,
		FrameSequenceNo:     req.FrameSequenceNo,
		RX:                  e.store.RXAreas(),
		RWr:                 e.store.RWrAreas(),
	}
	return cciefb.BuildResponse(resp)
}

func (e *Engine) sendTo(b []byte, dstIP uint32) {
	ip := ipFromUint32(dstIP)
	sent, err := e.net.UDPSend(e.handle, ip, cciefb.Port, b)
	if err != nil || sent != len(b) {
		e.log.Warn("cciefbslave: send failed", "err", err, "sent", sent, "want", len(b))
	}
}

func (e *Engine) onCyclicNewMaster(now uint32, req *cciefb.Request, stationIdx int, stationNo uint16, groupNo uint8, totalOccupied uint16) {
	if stationAlreadyMarkedRunning(req, stationIdx) {
		if e.limiter.ShouldRunNow(limiterKey(ErrSlaveStationDuplication, 0), now) {
			e.cfg.Callbacks.error(ErrSlaveStationDuplication, 0)
		}
		emitFrameDropped("slave_station_duplication")
		return
	}

	wasControl := e.state == MasterControl
	e.conn = MasterConnection{
		Valid:                   true,
		MasterID:                req.MasterID,
		ProtocolVer:             req.ProtocolVer,
		GroupNo:                 groupNo,
		SlaveStationNo:          stationNo,
		TotalOccupiedInGroup:    totalOccupied,
		ParameterNo:             req.ParameterNo,
		TimeoutMs:               req.TimeoutValueMs,
		ParallelOffTimeoutCount: req.ParallelOffCount,
		ClockInfo:               req.ClockInfo,
		LastRequestMicros:       now,
		MasterLocalUnitInfo:     req.MasterLocalUnitInfo,
	}
	_ = e.store.CopyFromRequest(req, int(stationNo), transmissionEnabled(req, stationIdx))

	resp := e.buildNormalResponse(req, groupNo)
	e.sendTo(resp, req.MasterID)

	if !wasControl {
		e.transition(EventCyclicNewMaster, e.state, MasterControl)
	}
	e.cfg.Callbacks.connect(groupNo, stationNo, req.MasterID)
	e.emitMasterRunning(FilterMasterRunningState(true, req.ProtocolVer, req.MasterLocalUnitInfo))
}

func (e *Engine) onCyclicCorrectMaster(now uint32, req *cciefb.Request, stationIdx int, stationNo uint16) {
	if req.FrameSequenceNo == 0 {
		if e.limiter.ShouldRunNow(frameSequenceResetLimiterKey, now) {
			e.log.Warn("cciefbslave: frame_sequence_no reset to 0 while connected; dropping, watchdog will recover if sustained")
		}
		emitFrameDropped("frame_sequence_reset")
		return
	}

	e.conn.LastRequestMicros = now
	infoChanged := req.MasterLocalUnitInfo != e.conn.MasterLocalUnitInfo
	e.conn.MasterLocalUnitInfo = req.MasterLocalUnitInfo
	e.conn.ProtocolVer = req.ProtocolVer

	_ = e.store.CopyFromRequest(req, int(stationNo), transmissionEnabled(req, stationIdx))

	resp := e.buildNormalResponse(req, e.conn.GroupNo)
	e.sendTo(resp, req.MasterID)

	if infoChanged {
		e.emitMasterRunning(FilterMasterRunningState(true, req.ProtocolVer, req.MasterLocalUnitInfo))
	}
}

func limiterKey(code ErrorCode, arg uint32) uint64 {
	return uint64(code)<<32 | uint64(arg)
}

// frameSequenceResetLimiterKey rate-limits the frame_sequence_no==0 warning
// (spec §4.6, §9 open question); it is not one of the three user-facing
// ErrorCodes so it is kept out of their key space.
const frameSequenceResetLimiterKey = uint64(1) << 40

func (e *Engine) onCyclicWrongMaster(now uint32, req *cciefb.Request, groupNo uint8, intruderIP uint32) {
	resp := e.buildErrorResponse(req, groupNo, cciefb.EndCodeMasterDuplication)
	e.sendTo(resp, intruderIP)
	if e.limiter.ShouldRunNow(limiterKey(ErrMasterStationDuplication, intruderIP), now) {
		e.cfg.Callbacks.error(ErrMasterStationDuplication, intruderIP)
	}
}

func (e *Engine) onCyclicWrongStationCount(now uint32, req *cciefb.Request, groupNo uint8, reportedCount uint16) {
	wasControl := e.state == MasterControl
	resp := e.buildErrorResponse(req, groupNo, cciefb.EndCodeWrongNumberOccupied)
	e.sendTo(resp, req.MasterID)

	if wasControl {
		e.disconnectToMasterNone(EventCyclicWrongStationCount)
	}
	if e.limiter.ShouldRunNow(limiterKey(ErrWrongNumberOccupied, uint32(reportedCount)), now) {
		e.cfg.Callbacks.error(ErrWrongNumberOccupied, uint32(reportedCount))
	}
}

func (e *Engine) sendSticky(req *cciefb.Request, groupNo uint8) {
	endcode := e.endcodeWhenDisabled
	if endcode == 0 {
		endcode = cciefb.EndCodeSlaveRequestsDisconnect
	}
	resp := e.buildErrorResponse(req, groupNo, endcode)
	e.sendTo(resp, req.MasterID)
}
