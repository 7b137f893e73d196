// Package metrics holds process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "opstriage"

var (
	// HTTPRequestDuration tracks API latency by chi route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status_code"},
	)

	// StorePoolConnections tracks the connection pool of the incident store.
	StorePoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "pool_connections",
			Help:      "Incident store pool connections by state",
		},
		[]string{"store", "state"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Always 1, labelled with the running build",
		},
		[]string{"version", "commit", "storage"},
	)
)

// RecordBuildInfo publishes the running build and the selected storage driver.
func RecordBuildInfo(version, commit, storage string) {
	buildInfo.WithLabelValues(version, commit, storage).Set(1)
}
