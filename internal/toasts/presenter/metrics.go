package presenter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "toastd"

var (
	streamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "subscribers",
			Help:      "Open toast stream subscriptions",
		},
	)

	framesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped because a subscriber fell behind",
		},
		[]string{"type"},
	)
)

func recordFrameDropped(t FrameType) {
	framesDropped.WithLabelValues(string(t)).Inc()
}
