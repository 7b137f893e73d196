package incidents

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/bissquit/ops-triage-hub/internal/domain"
)

// Repository defines the interface for incident and timeline storage.
//
// CreateIncident and UpdateIncident are atomic: the incident row and all of
// the given timeline events are written together or not at all. The store
// assigns TimelineEvent.Seq on append.
//
// UpdateIncident is staged against the status the caller read (from). If the
// stored status differs by the time the write runs, nothing is written and the
// error wraps ErrInvalidTransition.
type Repository interface {
	CreateIncident(ctx context.Context, incident *domain.Incident, event *domain.TimelineEvent) error
	GetIncident(ctx context.Context, id string) (*domain.Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]*domain.Incident, error)
	CountIncidents(ctx context.Context) (int, error)
	UpdateIncident(ctx context.Context, incident *domain.Incident, from domain.Status, events []*domain.TimelineEvent) error

	ListTimeline(ctx context.Context, incidentID string) ([]*domain.TimelineEvent, error)
}

// IncidentFilter holds filter options for listing incidents.
//
// Results are ordered by resolved_at DESC when the filter selects resolved
// incidents (Status == resolved or ResolvedSince set), otherwise by created_at DESC.
type IncidentFilter struct {
	Status        *domain.Status
	ActiveOnly    bool
	ResolvedSince *time.Time
	Limit         int
}

// OrdersByResolution reports whether results are ordered by resolved_at.
func (f IncidentFilter) OrdersByResolution() bool {
	return f.ResolvedSince != nil || (f.Status != nil && *f.Status == domain.StatusResolved)
}

// Matches applies the filter to a single incident. Stores that cannot push the
// filter down to a query use it to post-filter.
func (f IncidentFilter) Matches(inc *domain.Incident) bool {
	if f.ActiveOnly && !inc.Status.IsActive() {
		return false
	}
	if f.Status != nil && inc.Status != *f.Status {
		return false
	}
	if f.ResolvedSince != nil {
		if inc.ResolvedAt == nil || inc.ResolvedAt.Before(*f.ResolvedSince) {
			return false
		}
	}
	return true
}

// Apply filters, orders and limits an unordered snapshot. Stores that keep
// incidents outside a query engine use it so every backend returns the same order.
func (f IncidentFilter) Apply(list []*domain.Incident) []*domain.Incident {
	out := make([]*domain.Incident, 0, len(list))
	for _, inc := range list {
		if f.Matches(inc) {
			out = append(out, inc)
		}
	}

	byResolution := f.OrdersByResolution()
	slices.SortFunc(out, func(a, b *domain.Incident) int {
		if byResolution && a.ResolvedAt != nil && b.ResolvedAt != nil {
			if c := b.ResolvedAt.Compare(*a.ResolvedAt); c != 0 {
				return c
			}
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}
