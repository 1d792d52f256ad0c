// Package slmpslave implements the SLMP slave-side handlers: node search
// (with its randomized response delay) and set-IP (spec §4.7).
package slmpslave

import (
	"log/slog"
	"net"

	"github.com/rtlabs-com/c-link-sub001/internal/netdev"
	"github.com/rtlabs-com/c-link-sub001/internal/netutil"
	"github.com/rtlabs-com/c-link-sub001/internal/slmp"
)

const maxFramesPerTick = 8

// Callbacks is the user-supplied set of optional SLMP event hooks.
type Callbacks struct {
	// NodeSearch fires when a valid node-search request is accepted,
	// before the delayed response is sent.
	NodeSearch func(masterIP uint32, masterMAC [6]byte)

	// SetIP fires after a valid set-IP request has been handled, whether
	// or not the change was allowed or applied.
	SetIP func(allowed, succeeded bool)
}

func (c Callbacks) nodeSearch(masterIP uint32, masterMAC [6]byte) {
	if c.NodeSearch != nil {
		c.NodeSearch(masterIP, masterMAC)
	}
}

func (c Callbacks) setIP(allowed, succeeded bool) {
	if c.SetIP != nil {
		c.SetIP(allowed, succeeded)
	}
}

// Config is the SLMP-specific subset of the slave's identity and network
// context.
type Config struct {
	VendorCode   uint16
	ModelCode    uint32
	EquipmentVer uint16

	IfIndex               int
	OwnMAC                [6]byte
	OwnIP                 uint32
	IPSettingAllowed      bool
	UseDirectedBroadcast  bool
	Callbacks             Callbacks
	Logger                *slog.Logger

	// OnIPApplied is invoked after a successful SetNetworkSettings call,
	// so the façade can propagate the new IP to the CCIEFB engine
	// (IpUpdated event) and the node-search/set-IP responder state.
	OnIPApplied func(newIP uint32)
}

type pendingNodeSearch struct {
	valid      bool
	destMAC    [6]byte
	destIP     uint32
	serial     uint16
	fireMicros uint32
}

// Engine is one slave's SLMP handler instance. It owns the persistent
// receive socket handle given to it; ephemeral sockets for delayed
// node-search responses and post-set-IP responses are opened and closed
// per use.
type Engine struct {
	cfg    Config
	net    netdev.NetIface
	handle netdev.UDPHandle
	log    *slog.Logger

	pending pendingNodeSearch
	buf     [slmp.SetIPReqSize]byte
}

// New constructs an Engine bound to the already-open persistent SLMP
// socket handle.
func New(cfg Config, netIface netdev.NetIface, handle netdev.UDPHandle) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{cfg: cfg, net: netIface, handle: handle, log: cfg.Logger}, nil
}

// SetOwnIP updates the IP used to bind the ephemeral node-search response
// socket and as the basis for directed-broadcast computation. Called by
// the façade after a successful set-IP.
func (e *Engine) SetOwnIP(ip uint32) { e.cfg.OwnIP = ip }

// Periodic implements spec §4.7's periodic(now): first services any due
// node-search response, then drains and dispatches incoming frames.
func (e *Engine) Periodic(now uint32) {
	e.serviceNodeSearch(now)

	for i := 0; i < maxFramesPerTick; i++ {
		n, srcIP, _, _, ifIndex, ok, err := e.net.UDPRecv(e.handle, e.buf[:])
		if err != nil {
			e.log.Warn("slmpslave: udp recv failed", "err", err)
			break
		}
		if !ok {
			break
		}
		e.dispatch(now, e.buf[:n], srcIP, ifIndex)
	}
}

func (e *Engine) serviceNodeSearch(now uint32) {
	if !e.pending.valid {
		return
	}
	if int32(now-e.pending.fireMicros) < 0 {
		return
	}
	p := e.pending
	e.pending = pendingNodeSearch{}

	mac, err := e.net.MAC(e.cfg.IfIndex)
	if err != nil {
		e.log.Warn("slmpslave: mac lookup failed, dropping node-search response", "err", err)
		return
	}
	var ownMAC [6]byte
	copy(ownMAC[:], mac)

	netmask, err := e.net.Netmask(e.cfg.IfIndex)
	if err != nil {
		e.log.Warn("slmpslave: netmask lookup failed, dropping node-search response", "err", err)
		return
	}

	resp := &slmp.NodeSearchResponse{
		Serial:       p.serial,
		MasterMAC:    p.destMAC,
		MasterIP:     p.destIP,
		SlaveMAC:     ownMAC,
		SlaveIP:      e.cfg.OwnIP,
		SlaveNetmask: netmask,
		SlaveStatus:  0,
		VendorCode:   e.cfg.VendorCode,
		ModelCode:    e.cfg.ModelCode,
		EquipmentVer: e.cfg.EquipmentVer,
	}
	b := slmp.BuildNodeSearchResponse(resp)

	dst := e.broadcastAddress(netmask)
	e.sendOneShot(dst, b)
	metricNodeSearchResponsesTotal.Inc()
}

func (e *Engine) broadcastAddress(netmask uint32) net.IP {
	if !e.cfg.UseDirectedBroadcast {
		return net.IPv4bcast
	}
	return netutil.Uint32ToIP(netutil.DirectedBroadcast(e.cfg.OwnIP, netmask))
}

// sendOneShot opens a fresh socket bound to our current IP on the SLMP
// port, sends b to dst, and closes it (spec §4.7.1).
func (e *Engine) sendOneShot(dst net.IP, b []byte) {
	h, err := e.net.UDPOpen(netutil.Uint32ToIP(e.cfg.OwnIP), slmp.Port)
	if err != nil {
		e.log.Warn("slmpslave: one-shot socket open failed", "err", err)
		return
	}
	defer e.net.UDPClose(h)
	sent, err := e.net.UDPSend(h, dst, slmp.Port, b)
	if err != nil || sent != len(b) {
		e.log.Warn("slmpslave: one-shot send failed", "err", err, "sent", sent, "want", len(b))
	}
}

func (e *Engine) dispatch(now uint32, b []byte, srcIP net.IP, ifIndex int) {
	if len(b) < 19 {
		emitFrameDropped("short")
		return
	}
	cmd := netutil.LE16(b[15:17])
	switch cmd {
	case slmp.CommandNodeSearch:
		e.handleNodeSearch(now, b, srcIP)
	case slmp.CommandSetIP:
		e.handleSetIP(b, srcIP)
	default:
		emitFrameDropped("unknown_command")
	}
}

func (e *Engine) handleNodeSearch(now uint32, b []byte, srcIP net.IP) {
	req, err := slmp.ParseNodeSearchRequest(b)
	if err != nil {
		emitFrameDropped("codec")
		return
	}
	if req.MasterIP != netutil.IPToUint32(srcIP) {
		emitFrameDropped("src_mismatch")
		return
	}
	metricNodeSearchRequestsTotal.Inc()

	delay := nodeSearchDelayMicros(e.cfg.OwnMAC)
	e.pending = pendingNodeSearch{
		valid:      true,
		destMAC:    req.MasterMAC,
		destIP:     req.MasterIP,
		serial:     req.Serial,
		fireMicros: now + delay,
	}
	e.cfg.Callbacks.nodeSearch(req.MasterIP, req.MasterMAC)
}

func (e *Engine) handleSetIP(b []byte, srcIP net.IP) {
	req, err := slmp.ParseSetIPRequest(b)
	if err != nil {
		emitFrameDropped("codec")
		return
	}
	if req.SlaveMAC != e.cfg.OwnMAC {
		emitFrameDropped("mac_mismatch")
		return
	}
	if req.MasterIP != netutil.IPToUint32(srcIP) {
		emitFrameDropped("src_mismatch")
		return
	}

	if !e.cfg.IPSettingAllowed {
		resp := &slmp.ErrorResponse{
			Serial:     req.Serial,
			Command:    slmp.CommandSetIP,
			SubCommand: slmp.SubCommand,
			EndCode:    slmp.EndCodeCommandDenied,
		}
		e.sendTo(srcIP, slmp.BuildErrorResponse(resp))
		metricSetIPTotal.WithLabelValues("denied").Inc()
		e.cfg.Callbacks.setIP(false, false)
		return
	}

	if err := e.net.SetNetworkSettings(e.cfg.IfIndex, netutil.Uint32ToIP(req.SlaveNewIP), req.SlaveNewNetmask); err != nil {
		e.log.Warn("slmpslave: set_network_settings failed", "err", err)
		metricSetIPTotal.WithLabelValues("failed").Inc()
		e.cfg.Callbacks.setIP(true, false)
		return
	}

	e.cfg.OwnIP = req.SlaveNewIP
	if e.cfg.OnIPApplied != nil {
		e.cfg.OnIPApplied(req.SlaveNewIP)
	}

	resp := &slmp.SetIPResponse{Serial: req.Serial, MasterMAC: req.MasterMAC}
	e.sendOneShot(netutil.Uint32ToIP(req.MasterIP), slmp.BuildSetIPResponse(resp))
	metricSetIPTotal.WithLabelValues("applied").Inc()
	e.cfg.Callbacks.setIP(true, true)
}

func (e *Engine) sendTo(dst net.IP, b []byte) {
	sent, err := e.net.UDPSend(e.handle, dst, slmp.Port, b)
	if err != nil || sent != len(b) {
		e.log.Warn("slmpslave: send failed", "err", err, "sent", sent, "want", len(b))
	}
}
