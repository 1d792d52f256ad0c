// Package facade is the slave's single public entry point (spec.md §4.8):
// it validates configuration, opens both UDP sockets, wires the CCIEFB and
// SLMP engines together, and exposes the periodic-driven lifecycle the host
// application drives. Shaped after liveness.ManagerConfig/Manager: a
// validated config struct plus a constructor that fails closed.
package facade

import (
	"log/slog"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rtlabs-com/c-link-sub001/internal/cciefb"
	"github.com/rtlabs-com/c-link-sub001/internal/cciefbslave"
	"github.com/rtlabs-com/c-link-sub001/internal/cyclicstore"
	"github.com/rtlabs-com/c-link-sub001/internal/netdev"
	"github.com/rtlabs-com/c-link-sub001/internal/netutil"
	"github.com/rtlabs-com/c-link-sub001/internal/slmp"
	"github.com/rtlabs-com/c-link-sub001/internal/slmpslave"
)

// NetIface and UDPHandle are aliases of internal/netdev's trait, kept here
// under the name spec.md §6 uses so callers configuring a Handle never need
// to know about the netdev package; netdev itself exists only to let
// cciefbslave/slmpslave depend on the trait type without importing facade.
type NetIface = netdev.NetIface
type UDPHandle = netdev.UDPHandle

// Callbacks is the full set of optional user hooks spec.md §6 lists under a
// single opaque cb_arg; Go closures make the shared argument unnecessary.
type Callbacks struct {
	State         func(from, to cciefbslave.SlaveState)
	Error         func(code cciefbslave.ErrorCode, arg uint32)
	Connect       func(groupNo uint8, stationNo uint16, masterIP uint32)
	Disconnect    func()
	MasterRunning func(cciefbslave.MasterRunningState)
	NodeSearch    func(masterIP uint32, masterMAC [6]byte)
	SetIP         func(allowed, succeeded bool)
}

// Config is spec.md §6's SlaveConfig, plus the ambient Logger/MetricsRegistry
// fields every subsystem in this corpus carries.
type Config struct {
	VendorCode            uint16
	ModelCode             uint32
	EquipmentVer          uint16
	NumOccupiedStations   uint16
	IPSettingAllowed      bool
	IefbIPAddr            uint32 // 0 = 0.0.0.0
	UseSLMPDirectedBroadcast bool
	IfIndex               int

	Callbacks Callbacks

	Logger          *slog.Logger
	MetricsRegistry *prometheus.Registry
}

// Validate fills defaults and enforces spec.md §6/§7's init-time
// constraints (the original's "protocol-version capability gating").
func (c *Config) Validate() error {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.VendorCode == 0 {
		return ErrZeroVendorCode
	}
	if c.ModelCode == 0 {
		return ErrZeroModelCode
	}
	if c.NumOccupiedStations < 1 || c.NumOccupiedStations > cciefb.MaxOccupiedStations {
		return ErrBadOccupiedCount
	}
	return nil
}

// Handle is the running slave instance returned by Init.
type Handle struct {
	cfg Config
	net netdev.NetIface

	iefbHandle netdev.UDPHandle
	slmpHandle netdev.UDPHandle

	store *cyclicstore.Store
	cc    *cciefbslave.Engine
	sl    *slmpslave.Engine

	ownIP uint32
}

// Init validates cfg, opens both sockets, and returns a ready Handle with
// the state machine at MasterNone and memory areas zeroed.
func Init(cfg Config, netIface netdev.NetIface) (*Handle, error) {
	if netIface == nil {
		return nil, ErrNilNetIface
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bindIP := netutil.Uint32ToIP(cfg.IefbIPAddr)
	if cfg.IefbIPAddr == 0 {
		bindIP = net.IPv4zero
	}

	iefbHandle, err := netIface.UDPOpen(bindIP, cciefb.Port)
	if err != nil {
		return nil, err
	}
	slmpHandle, err := netIface.UDPOpen(net.IPv4zero, slmp.Port)
	if err != nil {
		_ = netIface.UDPClose(iefbHandle)
		return nil, err
	}

	mac, err := netIface.MAC(cfg.IfIndex)
	if err != nil {
		_ = netIface.UDPClose(iefbHandle)
		_ = netIface.UDPClose(slmpHandle)
		return nil, err
	}
	var ownMAC [6]byte
	copy(ownMAC[:], mac)

	store := cyclicstore.New(int(cfg.NumOccupiedStations))

	h := &Handle{cfg: cfg, net: netIface, iefbHandle: iefbHandle, slmpHandle: slmpHandle, store: store, ownIP: cfg.IefbIPAddr}

	cc, err := cciefbslave.New(cciefbslave.Config{
		VendorCode:          cfg.VendorCode,
		ModelCode:           cfg.ModelCode,
		EquipmentVer:        cfg.EquipmentVer,
		NumOccupiedStations: cfg.NumOccupiedStations,
		OwnIP:               cfg.IefbIPAddr,
		Logger:              cfg.Logger,
		Callbacks: cciefbslave.Callbacks{
			State:         cfg.Callbacks.State,
			Error:         cfg.Callbacks.Error,
			Connect:       cfg.Callbacks.Connect,
			Disconnect:    cfg.Callbacks.Disconnect,
			MasterRunning: cfg.Callbacks.MasterRunning,
		},
	}, store, netIface, iefbHandle)
	if err != nil {
		_ = netIface.UDPClose(iefbHandle)
		_ = netIface.UDPClose(slmpHandle)
		return nil, err
	}
	cc.Init()
	h.cc = cc

	sl, err := slmpslave.New(slmpslave.Config{
		VendorCode:           cfg.VendorCode,
		ModelCode:            cfg.ModelCode,
		EquipmentVer:         cfg.EquipmentVer,
		IfIndex:              cfg.IfIndex,
		OwnMAC:               ownMAC,
		OwnIP:                cfg.IefbIPAddr,
		IPSettingAllowed:     cfg.IPSettingAllowed,
		UseDirectedBroadcast: cfg.UseSLMPDirectedBroadcast,
		Logger:               cfg.Logger,
		Callbacks: slmpslave.Callbacks{
			NodeSearch: cfg.Callbacks.NodeSearch,
			SetIP:      cfg.Callbacks.SetIP,
		},
		OnIPApplied: h.onIPApplied,
	}, netIface, slmpHandle)
	if err != nil {
		_ = netIface.UDPClose(iefbHandle)
		_ = netIface.UDPClose(slmpHandle)
		return nil, err
	}
	h.sl = sl

	return h, nil
}

func (h *Handle) onIPApplied(newIP uint32) {
	h.ownIP = newIP
	h.cc.IPChanged(newIP)
	h.sl.SetOwnIP(newIP)
}

// Periodic drives one tick: SLMP first, then CCIEFB, per spec.md §5's
// ordering guarantee.
func (h *Handle) Periodic(now uint32) {
	metricTicksTotal.Inc()
	h.sl.Periodic(now)
	h.cc.Tick(now)
}

// DisableSlave/ReenableSlave are the user-facing stop_cyclic/restart_cyclic
// operations.
func (h *Handle) DisableSlave(isError bool) { h.cc.DisableSlave(isError) }
func (h *Handle) ReenableSlave()            { h.cc.ReenableSlave() }

// State returns the CCIEFB state machine's current state.
func (h *Handle) State() cciefbslave.SlaveState { return h.cc.State() }

// GetMasterConnectionDetails returns a copy of the current connection
// record (spec.md §4.8).
func (h *Handle) GetMasterConnectionDetails() cciefbslave.MasterConnection {
	return h.cc.MasterConnection()
}

// GetMasterTimestamp returns the clock_info snapshot from the last
// CyclicNewMaster, or 0 if no master owns this slave.
func (h *Handle) GetMasterTimestamp() uint64 {
	return h.cc.MasterConnection().ClockInfo
}

// SlaveApplicationStatus getters/setters (spec.md §4.8).
func (h *Handle) ApplicationStatus() cciefbslave.SlaveApplicationStatus { return h.cc.ApplicationStatus() }
func (h *Handle) SetApplicationStatus(s cciefbslave.SlaveApplicationStatus) { h.cc.SetApplicationStatus(s) }

func (h *Handle) LocalManagementInfo() uint32        { return h.cc.LocalManagementInfo() }
func (h *Handle) SetLocalManagementInfo(v uint32)    { h.cc.SetLocalManagementInfo(v) }
func (h *Handle) SlaveErrCode() uint16               { return h.cc.SlaveErrCode() }
func (h *Handle) SetSlaveErrCode(v uint16)           { h.cc.SetSlaveErrCode(v) }

// RX/SetRX/RY/RWr/SetRWr/RWw are the bit/word-level memory-area accessors
// (spec.md §4.8), delegated straight to the cyclic store.
func (h *Handle) RX(n int) bool          { return h.store.RX(n) }
func (h *Handle) SetRX(n int, v bool)    { h.store.SetRX(n, v) }
func (h *Handle) RY(n int) bool          { return h.store.RY(n) }
func (h *Handle) RWr(n int) uint16       { return h.store.RWr(n) }
func (h *Handle) SetRWr(n int, v uint16) { h.store.SetRWr(n, v) }
func (h *Handle) RWw(n int) uint16       { return h.store.RWw(n) }

// Exit closes both sockets. Any pending SLMP node-search response is
// discarded (spec.md §5's cancellation note).
func (h *Handle) Exit() error {
	err1 := h.net.UDPClose(h.iefbHandle)
	err2 := h.net.UDPClose(h.slmpHandle)
	if err1 != nil {
		return err1
	}
	return err2
}
