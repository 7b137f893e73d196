package incidents

import (
	"github.com/bissquit/ops-triage-hub/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "opstriage"

var (
	incidentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "created_total",
			Help:      "Total incidents created by priority",
		},
		[]string{"priority"},
	)

	incidentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "transitions_total",
			Help:      "Total committed incident mutations by old and new status",
		},
		[]string{"from", "to"},
	)

	timelineEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timeline",
			Name:      "events_total",
			Help:      "Total timeline events appended by type",
		},
		[]string{"event_type"},
	)
)

func recordCreated(priority domain.Priority) {
	incidentsCreated.WithLabelValues(string(priority)).Inc()
}

func recordTransition(from, to domain.Status) {
	incidentTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func recordTimelineEvents(events []*domain.TimelineEvent) {
	for _, e := range events {
		timelineEvents.WithLabelValues(string(e.Type)).Inc()
	}
}
