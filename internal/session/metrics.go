package session

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scoped",
		Subsystem: "session",
		Name:      "active",
		Help:      "Open peer sessions.",
	})
	sessionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scoped",
		Subsystem: "session",
		Name:      "created_total",
		Help:      "Sessions created from accepted offers.",
	})
	negotiationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scoped",
		Subsystem: "session",
		Name:      "negotiation_failures_total",
		Help:      "Offers rejected during negotiation.",
	})
	transientNoise = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scoped",
		Subsystem: "session",
		Name:      "transient_network_events_total",
		Help:      "Demoted network traversal warnings by pion scope.",
	}, []string{"scope"})
)

// Collectors returns the session metrics for registration by the caller.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{sessionsActive, sessionsTotal, negotiationFailures, transientNoise}
}
