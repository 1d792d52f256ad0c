package slmpslave

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricNodeSearchRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cls_slmp_node_search_requests_total",
			Help: "Count of accepted SLMP node-search requests.",
		},
	)

	metricNodeSearchResponsesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cls_slmp_node_search_responses_total",
			Help: "Count of SLMP node-search responses sent after their randomized delay.",
		},
	)

	metricSetIPTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cls_slmp_set_ip_total",
			Help: "Count of SLMP set-IP requests, by outcome.",
		},
		[]string{"outcome"},
	)

	metricFramesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cls_slmp_frames_dropped_total",
			Help: "Count of SLMP frames dropped, by reason.",
		},
		[]string{"reason"},
	)
)

func emitFrameDropped(reason string) {
	metricFramesDroppedTotal.WithLabelValues(reason).Inc()
}
