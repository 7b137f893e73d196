package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "opstriage"

var (
	healthStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ops",
		Name:      "health_status",
		Help:      "Last computed health status (0 green, 1 amber, 2 red)",
	})

	activeIncidents = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ops",
		Name:      "active_incidents",
		Help:      "Active incidents at the last health computation",
	})

	breachedIncidents = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ops",
		Name:      "breached_incidents",
		Help:      "Active incidents breaching SLA at the last health computation",
	})
)

func recordHealth(h *Health) {
	healthStatus.Set(float64(h.Status.Level()))
	activeIncidents.Set(float64(h.ActiveTotal))
	breachedIncidents.Set(float64(h.BreachedTotal))
}
