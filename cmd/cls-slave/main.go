// Command cls-slave runs a CC-Link IE Field Basic slave with an SLMP
// device-management sideband, polling both sockets from a fixed-interval
// periodic loop.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rtlabs-com/c-link-sub001/internal/cciefbslave"
	"github.com/rtlabs-com/c-link-sub001/internal/facade"
	"github.com/rtlabs-com/c-link-sub001/internal/netiface"
)

const defaultPeriod = time.Millisecond

var (
	vendorCode   = flag.Uint("vendor-code", 0, "vendor code (u16, required)")
	modelCode    = flag.Uint("model-code", 0, "model code (u32, required)")
	equipmentVer = flag.Uint("equipment-ver", 1, "equipment version (u16)")
	numStations  = flag.Uint("num-occupied-stations", 1, "number of occupied stations (1..16)")
	ifaceName    = flag.String("iface", "", "network interface name to bind and report over SLMP (required)")
	ipAddr       = flag.String("ip", "", "IPv4 address to bind the CCIEFB socket to (0.0.0.0 if empty)")
	ipSettable   = flag.Bool("ip-setting-allowed", false, "honor SLMP set-IP requests")
	directedBcast = flag.Bool("slmp-directed-broadcast", false, "use directed broadcast instead of 255.255.255.255 for node-search responses")
	period       = flag.Duration("period", defaultPeriod, "periodic loop cadence")

	verbose       = flag.Bool("v", false, "enable debug logging")
	versionFlag   = flag.Bool("version", false, "print build metadata and exit")
	metricsEnable = flag.Bool("metrics-enable", false, "enable prometheus metrics")
	metricsAddr   = flag.String("metrics-addr", "localhost:0", "address to listen on for prometheus metrics")

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	flag.Parse()

	opts := &slog.HandlerOptions{}
	if *verbose {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	if *versionFlag {
		fmt.Printf("version: %s\ncommit: %s\ndate: %s\n", version, commit, date)
		os.Exit(0)
	}

	if *ifaceName == "" {
		slog.Error("-iface is required")
		os.Exit(1)
	}
	ifi, err := net.InterfaceByName(*ifaceName)
	if err != nil {
		slog.Error("failed to resolve interface", "iface", *ifaceName, "err", err)
		os.Exit(1)
	}

	var ipv4 uint32
	if *ipAddr != "" {
		ip := net.ParseIP(*ipAddr).To4()
		if ip == nil {
			slog.Error("invalid -ip", "value", *ipAddr)
			os.Exit(1)
		}
		ipv4 = uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
	}

	if *metricsEnable {
		buildInfo := promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cls_slave_build_info",
				Help: "Build information of the slave binary.",
			},
			[]string{"version", "commit", "date"},
		)
		buildInfo.WithLabelValues(version, commit, date).Set(1)

		go func() {
			listener, err := net.Listen("tcp", *metricsAddr)
			if err != nil {
				slog.Error("failed to start prometheus metrics listener", "err", err)
				os.Exit(1)
			}
			http.Handle("/metrics", promhttp.Handler())
			slog.Info("prometheus metrics server started", "address", listener.Addr().String())
			if err := http.Serve(listener, nil); err != nil {
				log.Printf("prometheus metrics server stopped: %v", err)
			}
		}()
	}

	cfg := facade.Config{
		VendorCode:               uint16(*vendorCode),
		ModelCode:                uint32(*modelCode),
		EquipmentVer:             uint16(*equipmentVer),
		NumOccupiedStations:      uint16(*numStations),
		IPSettingAllowed:         *ipSettable,
		IefbIPAddr:               ipv4,
		UseSLMPDirectedBroadcast: *directedBcast,
		IfIndex:                  ifi.Index,
		Logger:                   logger,
		Callbacks: facade.Callbacks{
			State: func(from, to cciefbslave.SlaveState) {
				slog.Info("state transition", "from", from.String(), "to", to.String())
			},
			Error: func(code cciefbslave.ErrorCode, arg uint32) {
				slog.Warn("protocol error", "code", code.String(), "arg", arg)
			},
			Connect: func(groupNo uint8, stationNo uint16, masterIP uint32) {
				slog.Info("master connected", "group", groupNo, "station", stationNo, "master_ip", net.IPv4(byte(masterIP>>24), byte(masterIP>>16), byte(masterIP>>8), byte(masterIP)))
			},
			Disconnect: func() {
				slog.Info("master disconnected")
			},
		},
	}

	net4 := netiface.New()
	handle, err := facade.Init(cfg, net4)
	if err != nil {
		slog.Error("failed to initialize slave", "err", err)
		os.Exit(1)
	}
	defer handle.Exit()

	slog.Info("cls-slave started", "iface", *ifaceName, "period", *period)

	ticker := time.NewTicker(*period)
	defer ticker.Stop()
	start := time.Now()
	for range ticker.C {
		handle.Periodic(uint32(time.Since(start).Microseconds()))
	}
}
