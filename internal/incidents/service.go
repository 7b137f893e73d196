// Package incidents implements the incident lifecycle and its append-only timeline.
package incidents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/ops-triage-hub/internal/domain"
	"github.com/bissquit/ops-triage-hub/internal/pkg/ctxlog"
	"github.com/google/uuid"
)

// EventPublisher broadcasts timeline events after they are committed.
type EventPublisher interface {
	Publish(ctx context.Context, incident *domain.Incident, events []*domain.TimelineEvent) error
}

// Config holds lifecycle policy.
type Config struct {
	// ResolverRoles restricts resolved_by. Empty allows any non-empty identity.
	ResolverRoles []string
}

// Service implements incident lifecycle business logic.
type Service struct {
	repo          Repository
	publisher     EventPublisher
	resolverRoles []string
	now           func() time.Time
}

// NewService creates a new incident service. publisher may be nil.
func NewService(repo Repository, publisher EventPublisher, cfg Config) *Service {
	return &Service{
		repo:          repo,
		publisher:     publisher,
		resolverRoles: cfg.ResolverRoles,
		now:           time.Now,
	}
}

// CreateIncidentInput holds data for creating an incident.
type CreateIncidentInput struct {
	Title       string
	Description string
	Priority    domain.Priority
}

// TransitionInput holds a requested lifecycle change. Nil fields are not changed
// and an empty Status keeps the current one. ResolvedBy and ResolutionNotes are
// only read when moving into resolved.
type TransitionInput struct {
	IncidentID      string
	Status          domain.Status
	Priority        *domain.Priority
	Note            *string
	ResolvedBy      *string
	ResolutionNotes *string
}

// ListInput holds filter options for listing incidents.
type ListInput struct {
	Status *domain.Status
	// Days bounds resolved incidents by resolved_at; ignored for other statuses.
	Days  int
	Limit int
}

// CreateIncident creates an open incident and records its created event.
func (s *Service) CreateIncident(ctx context.Context, input CreateIncidentInput) (*domain.Incident, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !input.Priority.IsValid() {
		return nil, fmt.Errorf("%w: invalid priority %q, must be one of %v", ErrValidation, input.Priority, domain.Priorities)
	}

	now := s.timestamp()
	incident := &domain.Incident{
		ID:          uuid.New().String(),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Priority:    input.Priority,
		Status:      domain.StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	event := newTimelineEvent(incident.ID, domain.TimelineEventCreated, now)
	event.NewValue = strPtr(fmt.Sprintf("%s %s", incident.Priority, incident.Status))

	if err := s.repo.CreateIncident(ctx, incident, event); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}

	recordCreated(incident.Priority)
	recordTimelineEvents([]*domain.TimelineEvent{event})
	ctxlog.FromContext(ctx).Info("incident created",
		"incident_id", incident.ID,
		"priority", incident.Priority,
	)

	s.publish(ctx, incident, []*domain.TimelineEvent{event})
	return incident, nil
}

// TransitionIncident applies a status change plus optional priority change and note.
//
// Checks run in order: the incident exists, the status is reachable from the
// current one, resolution metadata is complete, the priority is recognized.
// Re-sending the current status is accepted only when it carries a priority
// change or a note. On success the update and its events are stored atomically
// in the order status_changed, priority_changed, note_added, resolved.
func (s *Service) TransitionIncident(ctx context.Context, input TransitionInput) (*domain.Incident, error) {
	current, err := s.repo.GetIncident(ctx, input.IncidentID)
	if err != nil {
		return nil, err
	}

	if input.Status == "" {
		input.Status = current.Status
	}
	if !input.Status.IsValid() {
		return nil, fmt.Errorf("%w: invalid status %q, must be one of %v", ErrValidation, input.Status, domain.Statuses)
	}

	note := trimmed(input.Note)
	priorityChanged := input.Priority != nil && *input.Priority != current.Priority
	statusChanged := input.Status != current.Status

	if !statusChanged {
		if !priorityChanged && note == "" {
			return nil, fmt.Errorf("%w: incident is already %s and the request changes nothing",
				ErrInvalidTransition, current.Status)
		}
	} else if !current.Status.CanTransitionTo(input.Status) {
		return nil, fmt.Errorf("%w: %s -> %s, allowed: %v",
			ErrInvalidTransition, current.Status, input.Status, current.Status.AllowedTransitions())
	}

	resolving := statusChanged && input.Status == domain.StatusResolved
	resolvedBy := trimmed(input.ResolvedBy)
	resolutionNotes := trimmed(input.ResolutionNotes)
	if resolving {
		if resolvedBy == "" {
			return nil, fmt.Errorf("%w: resolved_by is required when resolving", ErrValidation)
		}
		if !s.isResolverAllowed(resolvedBy) {
			return nil, fmt.Errorf("%w: invalid resolved_by %q, must be one of %v", ErrValidation, resolvedBy, s.resolverRoles)
		}
		if resolutionNotes == "" {
			return nil, fmt.Errorf("%w: resolution_notes is required when resolving", ErrValidation)
		}
	}

	if priorityChanged && !input.Priority.IsValid() {
		return nil, fmt.Errorf("%w: invalid priority %q, must be one of %v", ErrValidation, *input.Priority, domain.Priorities)
	}

	now := s.timestamp()
	updated := current.Clone()
	updated.UpdatedAt = now
	events := make([]*domain.TimelineEvent, 0, 4)

	if statusChanged {
		updated.Status = input.Status
		e := newTimelineEvent(updated.ID, domain.TimelineEventStatusChanged, now)
		e.OldValue = strPtr(string(current.Status))
		e.NewValue = strPtr(string(input.Status))
		events = append(events, e)
	}

	if priorityChanged {
		updated.Priority = *input.Priority
		e := newTimelineEvent(updated.ID, domain.TimelineEventPriorityChanged, now)
		e.OldValue = strPtr(string(current.Priority))
		e.NewValue = strPtr(string(*input.Priority))
		events = append(events, e)
	}

	if note != "" {
		e := newTimelineEvent(updated.ID, domain.TimelineEventNoteAdded, now)
		e.Note = strPtr(note)
		events = append(events, e)
	}

	if resolving {
		resolvedAt := now
		updated.ResolvedAt = &resolvedAt
		updated.ResolvedBy = strPtr(resolvedBy)
		updated.ResolutionNotes = strPtr(resolutionNotes)

		e := newTimelineEvent(updated.ID, domain.TimelineEventResolved, now)
		e.NewValue = strPtr(resolvedBy)
		e.Note = strPtr(resolutionNotes)
		events = append(events, e)
	}

	if err := s.repo.UpdateIncident(ctx, updated, current.Status, events); err != nil {
		return nil, fmt.Errorf("update incident: %w", err)
	}

	recordTransition(current.Status, updated.Status)
	recordTimelineEvents(events)
	ctxlog.FromContext(ctx).Info("incident transitioned",
		"incident_id", updated.ID,
		"from", current.Status,
		"to", updated.Status,
		"priority", updated.Priority,
		"events", len(events),
	)

	s.publish(ctx, updated, events)
	return updated, nil
}

// GetIncident retrieves an incident by ID.
func (s *Service) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	return s.repo.GetIncident(ctx, id)
}

// GetTimeline returns the incident's events oldest first.
func (s *Service) GetTimeline(ctx context.Context, incidentID string) ([]*domain.TimelineEvent, error) {
	if _, err := s.repo.GetIncident(ctx, incidentID); err != nil {
		return nil, err
	}

	events, err := s.repo.ListTimeline(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	return events, nil
}

// ListIncidents retrieves incidents with optional filters.
func (s *Service) ListIncidents(ctx context.Context, input ListInput) ([]*domain.Incident, error) {
	filter := IncidentFilter{
		Status: input.Status,
		Limit:  input.Limit,
	}
	if input.Status != nil && *input.Status == domain.StatusResolved {
		if input.Days <= 0 {
			return nil, fmt.Errorf("%w: days must be a positive integer", ErrValidation)
		}
		since := s.now().UTC().AddDate(0, 0, -input.Days)
		filter.ResolvedSince = &since
	}
	return s.repo.ListIncidents(ctx, filter)
}

// ListActive returns non-resolved incidents, newest first.
func (s *Service) ListActive(ctx context.Context, limit int) ([]*domain.Incident, error) {
	return s.repo.ListIncidents(ctx, IncidentFilter{ActiveOnly: true, Limit: limit})
}

// ListResolved returns incidents resolved within the last windowDays, most recently resolved first.
func (s *Service) ListResolved(ctx context.Context, windowDays, limit int) ([]*domain.Incident, error) {
	resolved := domain.StatusResolved
	return s.ListIncidents(ctx, ListInput{Status: &resolved, Days: windowDays, Limit: limit})
}

// ActiveIncidents returns the full active snapshot used by analytics.
func (s *Service) ActiveIncidents(ctx context.Context) ([]*domain.Incident, error) {
	return s.repo.ListIncidents(ctx, IncidentFilter{ActiveOnly: true})
}

// ResolvedSince returns every incident resolved at or after since.
func (s *Service) ResolvedSince(ctx context.Context, since time.Time) ([]*domain.Incident, error) {
	return s.repo.ListIncidents(ctx, IncidentFilter{ResolvedSince: &since})
}

func (s *Service) publish(ctx context.Context, incident *domain.Incident, events []*domain.TimelineEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, incident, events); err != nil {
		ctxlog.FromContext(ctx).Warn("failed to publish timeline events",
			"incident_id", incident.ID,
			"error", err,
		)
	}
}

func (s *Service) isResolverAllowed(resolver string) bool {
	if len(s.resolverRoles) == 0 {
		return true
	}
	for _, role := range s.resolverRoles {
		if role == resolver {
			return true
		}
	}
	return false
}

// timestamp returns the current time at the precision every store can round-trip.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func newTimelineEvent(incidentID string, eventType domain.TimelineEventType, at time.Time) *domain.TimelineEvent {
	return &domain.TimelineEvent{
		ID:         uuid.New().String(),
		IncidentID: incidentID,
		Type:       eventType,
		CreatedAt:  at,
	}
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func strPtr(s string) *string {
	return &s
}
