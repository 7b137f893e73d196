package ops

import (
	"time"

	"github.com/bissquit/ops-triage-hub/internal/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func activeIncident(id string, priority domain.Priority, status domain.Status, age time.Duration) *domain.Incident {
	created := testNow.Add(-age)
	return &domain.Incident{
		ID:        id,
		Title:     "incident " + id,
		Priority:  priority,
		Status:    status,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func resolvedIncident(id string, priority domain.Priority, resolver string, resolvedAgo, ttr time.Duration) *domain.Incident {
	resolvedAt := testNow.Add(-resolvedAgo)
	created := resolvedAt.Add(-ttr)
	notes := "fixed"
	return &domain.Incident{
		ID:              id,
		Title:           "incident " + id,
		Priority:        priority,
		Status:          domain.StatusResolved,
		CreatedAt:       created,
		UpdatedAt:       resolvedAt,
		ResolvedAt:      &resolvedAt,
		ResolvedBy:      &resolver,
		ResolutionNotes: &notes,
	}
}
