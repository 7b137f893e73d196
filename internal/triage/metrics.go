package triage

import (
	"github.com/bissquit/ops-triage-hub/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var suggestions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "opstriage",
		Subsystem: "triage",
		Name:      "suggestions_total",
		Help:      "Total triage suggestions by suggested priority",
	},
	[]string{"priority"},
)

func recordSuggestion(priority domain.Priority) {
	suggestions.WithLabelValues(string(priority)).Inc()
}
