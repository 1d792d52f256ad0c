package facade

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricTicksTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "cls_facade_ticks_total",
		Help: "Count of Periodic calls driven by the host application.",
	},
)
