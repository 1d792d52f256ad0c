// Package cciefbslave implements the CCIEFB slave state machine (spec
// §4.6): frame classification, the transition table, watchdog-driven
// timeout, and response emission. It owns no socket of its own beyond the
// handle it is given — the façade opens and closes it — and never blocks.
package cciefbslave

import (
	"log/slog"
	"net"

	"github.com/rtlabs-com/c-link-sub001/internal/cciefb"
	"github.com/rtlabs-com/c-link-sub001/internal/cyclicstore"
	"github.com/rtlabs-com/c-link-sub001/internal/netdev"
	"github.com/rtlabs-com/c-link-sub001/internal/netutil"
	"github.com/rtlabs-com/c-link-sub001/internal/timer"
)

// maxFramesPerTick bounds how many queued datagrams a single Tick drains,
// so one hyperactive peer cannot starve the rest of the periodic loop.
const maxFramesPerTick = 8

// errorLimiterPeriodMicros is the rate-limit window for repeated error_cb
// emissions of the same class (spec §4.1, §7).
const errorLimiterPeriodMicros = 1_000_000 // 1s

// Config is the CCIEFB-specific subset of the slave's frozen identity and
// configuration (spec §3).
type Config struct {
	VendorCode          uint16
	ModelCode           uint32
	EquipmentVer        uint16
	NumOccupiedStations uint16
	OwnIP               uint32
	Callbacks           Callbacks
	Logger              *slog.Logger
}

// Engine is one slave's CCIEFB state machine instance.
type Engine struct {
	cfg    Config
	net    netdev.NetIface
	handle netdev.UDPHandle
	store  *cyclicstore.Store
	log    *slog.Logger

	state State
	conn  MasterConnection

	appStatus           SlaveApplicationStatus
	localManagementInfo uint32
	slaveErrCode        uint16
	endcodeWhenDisabled uint16

	lastMasterRunning MasterRunningState
	limiter           *timer.Limiter

	frameBuf [cciefb.ReqHeaderSize + 16*76]byte
}

// State is an alias kept for readers scanning from spec §3's SlaveState
// name; the concrete type lives in state.go as SlaveState.
type State = SlaveState

// New constructs an Engine bound to store and ready to be started with
// Init. netIface/handle must already be open on CCIEFB's port.
func New(cfg Config, store *cyclicstore.Store, netIface netdev.NetIface, handle netdev.UDPHandle) (*Engine, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		cfg:     cfg,
		net:     netIface,
		handle:  handle,
		store:   store,
		log:     cfg.Logger,
		state:   SlaveDown,
		limiter: timer.NewLimiter(errorLimiterPeriodMicros),
	}, nil
}

// Init performs the Startup transition: SlaveDown -> MasterNone, with a
// zeroed connection record.
func (e *Engine) Init() {
	prev := e.state
	e.conn.Clear()
	e.state = MasterNone
	emitStateTransition(e.state)
	e.cfg.Callbacks.state(prev, e.state)
}

// State returns the current SlaveState.
func (e *Engine) State() SlaveState { return e.state }

// MasterConnection returns a copy of the current connection record.
func (e *Engine) MasterConnection() MasterConnection { return e.conn }

// ApplicationStatus/SetApplicationStatus expose spec §3's
// slave_application_status, user-settable between Periodic calls.
func (e *Engine) ApplicationStatus() SlaveApplicationStatus { return e.appStatus }
func (e *Engine) SetApplicationStatus(s SlaveApplicationStatus) { e.appStatus = s }

// LocalManagementInfo/SetLocalManagementInfo expose spec §3's
// local_management_info (user-defined, initial 0).
func (e *Engine) LocalManagementInfo() uint32 { return e.localManagementInfo }
func (e *Engine) SetLocalManagementInfo(v uint32) { e.localManagementInfo = v }

// SlaveErrCode/SetSlaveErrCode expose spec §3's slave_err_code
// (user-defined, initial 0).
func (e *Engine) SlaveErrCode() uint16 { return e.slaveErrCode }
func (e *Engine) SetSlaveErrCode(v uint16) { e.slaveErrCode = v }

// DisableSlave implements the user-facing stop_cyclic operation (spec
// §4.8): MasterNone -> SlaveDisabled directly, MasterControl ->
// WaitDisablingSlave with a sticky endcode chosen by isError.
func (e *Engine) DisableSlave(isError bool) {
	if e.state != MasterNone && e.state != MasterControl {
		// Idempotent: already disabled or already waiting (spec §7
		// supplemented feature "already disabled transitions are
		// idempotent"); the sticky endcode is left unchanged.
		return
	}
	if isError {
		e.endcodeWhenDisabled = cciefb.EndCodeSlaveError
	} else {
		e.endcodeWhenDisabled = cciefb.EndCodeSlaveRequestsDisconnect
	}
	switch e.state {
	case MasterNone:
		e.transition(EventDisableSlave, MasterNone, SlaveDisabled)
	case MasterControl:
		e.transition(EventDisableSlave, MasterControl, WaitDisablingSlave)
		e.cfg.Callbacks.disconnect()
	}
}

// ReenableSlave implements the user-facing restart_cyclic operation.
func (e *Engine) ReenableSlave() {
	switch e.state {
	case SlaveDisabled:
		e.conn.Clear()
		e.transition(EventReenableSlave, SlaveDisabled, MasterNone)
	case WaitDisablingSlave:
		e.conn.Clear()
		e.transition(EventReenableSlave, WaitDisablingSlave, MasterNone)
	default:
		// no-op from any other state
	}
}

// IPChanged notifies the engine that the slave's own IP address changed
// (e.g. via SLMP set-IP), forcing any active connection to drop: the
// master's frames still carry the old IP as our slave_id.
func (e *Engine) IPChanged(newOwnIP uint32) {
	e.cfg.OwnIP = newOwnIP
	switch e.state {
	case MasterControl:
		e.disconnectToMasterNone(EventIpUpdated)
	case WaitDisablingSlave:
		e.conn.Clear()
		e.transition(EventIpUpdated, WaitDisablingSlave, SlaveDisabled)
	}
}

// Tick drains up to maxFramesPerTick pending datagrams, processes each
// through the classifier and transition table, then runs the watchdog.
func (e *Engine) Tick(now uint32) {
	for i := 0; i < maxFramesPerTick; i++ {
		n, srcIP, _, _, _, ok, err := e.net.UDPRecv(e.handle, e.frameBuf[:])
		if err != nil {
			e.log.Warn("cciefbslave: udp recv failed", "err", err)
			break
		}
		if !ok {
			break
		}
		e.handleDatagram(now, e.frameBuf[:n], srcIP)
	}
	e.watchdog(now)
}

func (e *Engine) handleDatagram(now uint32, b []byte, srcIP net.IP) {
	req, err := cciefb.ParseRequest(b)
	if err != nil {
		e.log.Debug("cciefbslave: dropping malformed frame", "err", err)
		emitFrameDropped("codec")
		return
	}
	emitFrameProcessed()

	if e.state == SlaveDisabled {
		emitFrameDropped("disabled")
		return
	}

	stationIdx, ok := findOwnStation(req, e.cfg.OwnIP)
	if !ok {
		emitFrameDropped("no_matching_station")
		return
	}
	stationNo := uint16(stationIdx + 1)
	groupNo := req.GroupNo
	totalOccupied := req.SlaveTotalOccupiedCount

	n := int(e.cfg.NumOccupiedStations)
	boundsOK := int(stationNo)-1+n <= int(totalOccupied)

	if e.state == WaitDisablingSlave {
		e.sendSticky(req, groupNo)
		if e.conn.Valid && e.conn.MasterID == req.MasterID {
			e.conn.LastRequestMicros = now
		}
		return
	}

	var event SlaveEvent
	switch {
	case e.conn.Valid && e.conn.MasterID != req.MasterID:
		event = EventCyclicWrongMaster
	case !boundsOK:
		event = EventCyclicWrongStationCount
	case !e.conn.Valid || e.conn.ParameterNo != req.ParameterNo:
		event = EventCyclicNewMaster
	default:
		event = EventCyclicCorrectMaster
	}

	switch event {
	case EventCyclicNewMaster:
		e.onCyclicNewMaster(now, req, stationIdx, stationNo, groupNo, totalOccupied)
	case EventCyclicCorrectMaster:
		e.onCyclicCorrectMaster(now, req, stationIdx, stationNo)
	case EventCyclicWrongMaster:
		e.onCyclicWrongMaster(now, req, groupNo, netutil.IPToUint32(srcIP))
	case EventCyclicWrongStationCount:
		e.onCyclicWrongStationCount(now, req, groupNo, totalOccupied)
	}
}

func ipFromUint32(v uint32) net.IP {
	return netutil.Uint32ToIP(v)
}

// findOwnStation returns the 0-based index of the payload slot whose
// slave_id equals ownIP, or ok=false if no slot matches.
func findOwnStation(req *cciefb.Request, ownIP uint32) (int, bool) {
	for i, st := range req.Stations {
		if st.SlaveID == ownIP {
			return i, true
		}
	}
	return 0, false
}

// transmissionEnabled reports whether cyclic_transmission_state leaves
// station index idx enabled (bit set = disabled, spec §4.3); the result is
// passed unchanged as CopyFromRequest's transmissionBit.
func transmissionEnabled(req *cciefb.Request, idx int) bool {
	return req.CyclicTransmissionState&(1<<uint(idx)) == 0
}

// stationAlreadyMarkedRunning implements spec §4.6's literal duplication
// rule: on CyclicNewMaster, if the station's cyclic_transmission_state bit
// is already 1 the master believes we are already running.
func stationAlreadyMarkedRunning(req *cciefb.Request, idx int) bool {
	return req.CyclicTransmissionState&(1<<uint(idx)) != 0
}

func (e *Engine) watchdog(now uint32) {
	if e.state != MasterControl && e.state != WaitDisablingSlave {
		return
	}
	elapsed := now - e.conn.LastRequestMicros
	deadline := uint32(e.conn.TimeoutMs) * 1000 * uint32(e.conn.ParallelOffTimeoutCount)
	if int32(elapsed-deadline) < 0 {
		return
	}
	if e.state == MasterControl {
		e.disconnectToMasterNone(EventTimeoutMaster)
	} else {
		e.conn.Clear()
		e.transition(EventDisableSlaveWaitEnded, WaitDisablingSlave, SlaveDisabled)
	}
}

func (e *Engine) disconnectToMasterNone(ev SlaveEvent) {
	e.conn.Clear()
	e.transition(ev, MasterControl, MasterNone)
	e.cfg.Callbacks.disconnect()
	e.emitMasterRunning(FilterMasterRunningState(false, 0, 0))
}

func (e *Engine) transition(ev SlaveEvent, from, to SlaveState) {
	e.state = to
	emitStateTransition(to)
	e.log.Debug("cciefbslave: transition", "event", ev.String(), "from", from.String(), "to", to.String())
	e.cfg.Callbacks.state(from, to)
}

func (e *Engine) emitMasterRunning(s MasterRunningState) {
	if s.changed(e.lastMasterRunning) {
		e.lastMasterRunning = s
		e.cfg.Callbacks.masterRunning(s)
	}
}
