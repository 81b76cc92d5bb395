package bridge

import "github.com/prometheus/client_golang/prometheus"

var (
	framesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scoped",
		Subsystem: "bridge",
		Name:      "frames_total",
		Help:      "Frames seen by media bridges by outcome.",
	}, []string{"outcome"})
	processLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scoped",
		Subsystem: "bridge",
		Name:      "frame_latency_seconds",
		Help:      "Time from frame receipt to emission.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
	})
	activeBridges = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scoped",
		Subsystem: "bridge",
		Name:      "active",
		Help:      "Running media bridges.",
	})
)

// Collectors returns the bridge metrics for registration by the caller.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{framesTotal, processLatency, activeBridges}
}
