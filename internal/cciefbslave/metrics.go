package cciefbslave

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels for the counters below.
const (
	labelReason = "reason"
	labelState  = "state"
)

var (
	metricCyclicFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cls_cyclic_frames_total",
			Help: "Count of validated cyclic request frames processed by the CCIEFB slave engine.",
		},
	)

	metricCyclicFramesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cls_cyclic_frames_dropped_total",
			Help: "Count of cyclic frames dropped, by reason.",
		},
		[]string{labelReason},
	)

	metricStateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cls_cciefb_state_transitions_total",
			Help: "Count of CCIEFB slave state-machine transitions, by destination state.",
		},
		[]string{labelState},
	)
)

func emitFrameProcessed() {
	metricCyclicFramesTotal.Inc()
}

func emitFrameDropped(reason string) {
	metricCyclicFramesDroppedTotal.WithLabelValues(reason).Inc()
}

func emitStateTransition(to SlaveState) {
	metricStateTransitionsTotal.WithLabelValues(to.String()).Inc()
}
