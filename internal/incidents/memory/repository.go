// Package memory provides an in-process implementation of incidents repository.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/bissquit/ops-triage-hub/internal/domain"
	"github.com/bissquit/ops-triage-hub/internal/incidents"
)

// Repository implements incidents.Repository in memory.
// Stored values are copied on the way in and out.
type Repository struct {
	mu        sync.RWMutex
	incidents map[string]*domain.Incident
	timelines map[string][]*domain.TimelineEvent
	seq       int64
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		incidents: make(map[string]*domain.Incident),
		timelines: make(map[string][]*domain.TimelineEvent),
	}
}

// CreateIncident stores the incident and its created event.
func (r *Repository) CreateIncident(_ context.Context, incident *domain.Incident, event *domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.incidents[incident.ID]; exists {
		return fmt.Errorf("create incident: duplicate id %s", incident.ID)
	}

	r.incidents[incident.ID] = incident.Clone()
	r.appendLocked(incident.ID, []*domain.TimelineEvent{event})
	return nil
}

// GetIncident retrieves an incident by ID.
func (r *Repository) GetIncident(_ context.Context, id string) (*domain.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	incident, ok := r.incidents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", incidents.ErrIncidentNotFound, id)
	}
	return incident.Clone(), nil
}

// ListIncidents retrieves incidents matching the filter.
func (r *Repository) ListIncidents(_ context.Context, filter incidents.IncidentFilter) ([]*domain.Incident, error) {
	r.mu.RLock()
	snapshot := make([]*domain.Incident, 0, len(r.incidents))
	for _, incident := range r.incidents {
		snapshot = append(snapshot, incident.Clone())
	}
	r.mu.RUnlock()

	return filter.Apply(snapshot), nil
}

// CountIncidents returns the number of stored incidents.
func (r *Repository) CountIncidents(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.incidents), nil
}

// UpdateIncident replaces the stored incident and appends events.
func (r *Repository) UpdateIncident(_ context.Context, incident *domain.Incident, from domain.Status, events []*domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.incidents[incident.ID]
	if !ok {
		return fmt.Errorf("%w: %s", incidents.ErrIncidentNotFound, incident.ID)
	}
	if stored.Status != from {
		return incidents.StaleStatusError(incident.ID, from, stored.Status)
	}

	r.incidents[incident.ID] = incident.Clone()
	r.appendLocked(incident.ID, events)
	return nil
}

// ListTimeline returns the incident's events in append order.
func (r *Repository) ListTimeline(_ context.Context, incidentID string) ([]*domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.timelines[incidentID]
	events := make([]*domain.TimelineEvent, 0, len(stored))
	for _, e := range stored {
		c := *e
		events = append(events, &c)
	}
	return events, nil
}

// appendLocked assigns seq to each event and stores a copy. Caller holds mu.
func (r *Repository) appendLocked(incidentID string, events []*domain.TimelineEvent) {
	for _, e := range events {
		r.seq++
		e.Seq = r.seq
		c := *e
		r.timelines[incidentID] = append(r.timelines[incidentID], &c)
	}
}
