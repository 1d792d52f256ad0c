package cciefbslave

// MasterRunningState is the normalized tuple delivered to the
// MasterRunning callback, translated from the raw
// (connected, protocol_ver, master_application_status) triple by
// FilterMasterRunningState so the user never has to interpret the raw
// status bits themselves (spec §4.6).
type MasterRunningState struct {
	Connected     bool
	Running       bool
	StoppedByUser bool
	ProtocolVer   uint16
	RawStatus     uint16
}

// FilterMasterRunningState implements the dedicated, independently testable
// predicate named in spec §4.6. Rules:
//
//   - disconnected => every field zero/false (ProtocolVer/RawStatus too).
//   - protocol_ver == 1 => stopped_by_user is always false; running = bit 0
//     of status.
//   - protocol_ver >= 2 => running = (status == 1), stopped_by_user =
//     (status == 2); status == 3 sets running = true (bit-0 interpretation);
//     any other value leaves both false.
func FilterMasterRunningState(connected bool, protocolVer, status uint16) MasterRunningState {
	if !connected {
		return MasterRunningState{}
	}
	s := MasterRunningState{Connected: true, ProtocolVer: protocolVer, RawStatus: status}
	if protocolVer == 1 {
		s.Running = status&1 != 0
		return s
	}
	switch status {
	case 1:
		s.Running = true
	case 2:
		s.StoppedByUser = true
	case 3:
		s.Running = true
	}
	return s
}

// changed reports whether two normalized states differ in any of the five
// fields the callback contract tracks.
func (s MasterRunningState) changed(other MasterRunningState) bool {
	return s != other
}
