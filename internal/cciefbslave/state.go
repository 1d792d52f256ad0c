package cciefbslave

// SlaveState is one state of the CCIEFB slave state machine (spec §3, §4.6).
type SlaveState int

const (
	SlaveDown SlaveState = iota
	MasterNone
	MasterControl
	WaitDisablingSlave
	SlaveDisabled
	// Last is a terminal sentinel used only for test forcing; it is never
	// reached through the normal transition table.
	Last
)

func (s SlaveState) String() string {
	switch s {
	case SlaveDown:
		return "SlaveDown"
	case MasterNone:
		return "MasterNone"
	case MasterControl:
		return "MasterControl"
	case WaitDisablingSlave:
		return "WaitDisablingSlave"
	case SlaveDisabled:
		return "SlaveDisabled"
	case Last:
		return "Last"
	default:
		return "Unknown"
	}
}

// SlaveEvent drives transitions (spec §4.6).
type SlaveEvent int

const (
	EventStartup SlaveEvent = iota
	EventCyclicNewMaster
	EventCyclicCorrectMaster
	EventCyclicWrongMaster
	EventCyclicWrongStationCount
	EventCyclicIncomingWhenDisabled
	EventTimeoutMaster
	EventDisableSlave
	EventDisableSlaveWaitEnded
	EventReenableSlave
	EventIpUpdated
)

func (e SlaveEvent) String() string {
	switch e {
	case EventStartup:
		return "Startup"
	case EventCyclicNewMaster:
		return "CyclicNewMaster"
	case EventCyclicCorrectMaster:
		return "CyclicCorrectMaster"
	case EventCyclicWrongMaster:
		return "CyclicWrongMaster"
	case EventCyclicWrongStationCount:
		return "CyclicWrongStationCount"
	case EventCyclicIncomingWhenDisabled:
		return "CyclicIncomingWhenDisabled"
	case EventTimeoutMaster:
		return "TimeoutMaster"
	case EventDisableSlave:
		return "DisableSlave"
	case EventDisableSlaveWaitEnded:
		return "DisableSlaveWaitEnded"
	case EventReenableSlave:
		return "ReenableSlave"
	case EventIpUpdated:
		return "IpUpdated"
	default:
		return "Unknown"
	}
}

// SlaveApplicationStatus is the user-visible application status (spec §3).
type SlaveApplicationStatus int

const (
	StatusOperating SlaveApplicationStatus = iota
	StatusStopped
)

// MasterConnection is the connection record owned by the engine while a
// master owns this slave. Zeroed ("invalid") when no master owns us.
type MasterConnection struct {
	Valid                   bool
	MasterID                uint32
	ProtocolVer             uint16
	GroupNo                 uint8
	SlaveStationNo          uint16
	TotalOccupiedInGroup    uint16
	ParameterNo             uint16
	TimeoutMs               uint16
	ParallelOffTimeoutCount uint16
	ClockInfo               uint64 // Unix ms snapshot, 0 = invalid
	LastRequestMicros       uint32
	MasterLocalUnitInfo     uint16
}

// IsValid reports whether this connection record describes an owning
// master, matching the invariant in spec §3: state ∈ {MasterControl,
// WaitDisablingSlave} iff MasterConnection.IsValid().
func (c *MasterConnection) IsValid() bool { return c.Valid && c.MasterID != 0 }

// Clear zeroes the connection record (spec: "treated as no master").
func (c *MasterConnection) Clear() { *c = MasterConnection{} }
