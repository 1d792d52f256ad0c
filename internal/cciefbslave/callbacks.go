package cciefbslave

// Callbacks is the user-supplied set of optional event hooks for the CCIEFB
// slave engine. Per the source's "Callback indirection" design note, this
// replaces a C function-pointer-plus-void* pair with an owned struct of
// optional closures; any field left nil is simply never called. Callbacks
// are invoked synchronously from the engine's methods (Tick, Init,
// DisableSlave, ReenableSlave, IPChanged), never from inside a lock (the
// engine holds none across a callback).
type Callbacks struct {
	// State is invoked whenever SlaveState changes.
	State func(from, to SlaveState)

	// Error is rate-limited by a single-slot limiter: a repeat of the
	// same (code, arg) pair within the window is suppressed, while a
	// pair that differs from the previous one always passes. arg carries the intruder IP for
	// MASTER_STATION_DUPLICATION, the reported occupied count for
	// WRONG_NUMBER_OCCUPIED, and is 0 for SLAVE_STATION_DUPLICATION.
	Error func(code ErrorCode, arg uint32)

	// Connect fires on every accepted CyclicNewMaster event: once when a
	// master enters MasterControl, and again whenever the owning master's
	// parameter_no changes while in MasterControl.
	Connect func(groupNo uint8, stationNo uint16, masterIP uint32)

	// Disconnect fires exactly once per leave of MasterControl, whether to
	// MasterNone or to WaitDisablingSlave; the later moves out of
	// WaitDisablingSlave do not fire it again.
	Disconnect func()

	// MasterRunning fires whenever the normalized master-running tuple
	// changes, or on its first emission for a connection.
	MasterRunning func(MasterRunningState)
}

func (c Callbacks) state(from, to SlaveState) {
	if c.State != nil {
		c.State(from, to)
	}
}

func (c Callbacks) error(code ErrorCode, arg uint32) {
	if c.Error != nil {
		c.Error(code, arg)
	}
}

func (c Callbacks) connect(groupNo uint8, stationNo uint16, masterIP uint32) {
	if c.Connect != nil {
		c.Connect(groupNo, stationNo, masterIP)
	}
}

func (c Callbacks) disconnect() {
	if c.Disconnect != nil {
		c.Disconnect()
	}
}

func (c Callbacks) masterRunning(s MasterRunningState) {
	if c.MasterRunning != nil {
		c.MasterRunning(s)
	}
}
