package manager

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	loadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scoped",
		Subsystem: "pipeline",
		Name:      "loads_total",
		Help:      "Pipeline load attempts by outcome.",
	}, []string{"outcome"})
	loadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scoped",
		Subsystem: "pipeline",
		Name:      "load_duration_seconds",
		Help:      "Duration of committed pipeline loads.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	})
	generationGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scoped",
		Subsystem: "pipeline",
		Name:      "generation",
		Help:      "Latest load generation.",
	})
	stateGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "scoped",
		Subsystem: "pipeline",
		Name:      "state",
		Help:      "1 for the current lifecycle state, 0 otherwise.",
	}, []string{"state"})
	pipelinesReleased = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scoped",
		Subsystem: "pipeline",
		Name:      "released_total",
		Help:      "Pipelines closed after retirement.",
	})
)

// Collectors returns the manager's metrics for registration by the caller.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{loadsTotal, loadDuration, generationGauge, stateGauge, pipelinesReleased}
}

var allStates = []State{StateUnloaded, StateLoading, StateLoaded, StateFailed}

func observeState(s *Snapshot) {
	generationGauge.Set(float64(s.Generation))
	for _, st := range allStates {
		v := 0.0
		if st == s.State {
			v = 1
		}
		stateGauge.WithLabelValues(string(st)).Set(v)
	}
}
