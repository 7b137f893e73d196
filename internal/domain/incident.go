// Package domain contains the core incident model shared by storage, lifecycle and analytics.
package domain

import (
	"strings"
	"time"
)

// Priority represents how urgent an incident is. P0 is the most severe.
type Priority string

// Priorities.
const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// Priorities lists all priorities from most to least severe.
var Priorities = []Priority{PriorityP0, PriorityP1, PriorityP2, PriorityP3}

// IsValid checks if the priority is one of the recognized values.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
		return true
	}
	return false
}

// Severity returns the ordering weight of the priority: 0 for P0 up to 3 for P3.
// Unknown priorities sort after P3.
func (p Priority) Severity() int {
	for i, known := range Priorities {
		if p == known {
			return i
		}
	}
	return len(Priorities)
}

// MoreSevereThan reports whether p outranks other.
func (p Priority) MoreSevereThan(other Priority) bool {
	return p.Severity() < other.Severity()
}

// ParsePriority normalizes user input ("p1 ", "P1") into a Priority.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	return p, p.IsValid()
}

// Status represents the lifecycle stage of an incident.
type Status string

// Incident statuses.
const (
	StatusOpen          Status = "open"
	StatusInvestigating Status = "investigating"
	StatusMitigated     Status = "mitigated"
	StatusResolved      Status = "resolved"
)

// Statuses lists all statuses in lifecycle order.
var Statuses = []Status{StatusOpen, StatusInvestigating, StatusMitigated, StatusResolved}

// statusTransitions is the lifecycle state machine. Resolved is terminal.
var statusTransitions = map[Status][]Status{
	StatusOpen:          {StatusInvestigating},
	StatusInvestigating: {StatusMitigated, StatusResolved},
	StatusMitigated:     {StatusResolved},
	StatusResolved:      {},
}

// IsValid checks if the status is one of the recognized values.
func (s Status) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// IsActive reports whether an incident in this status still needs work.
func (s Status) IsActive() bool {
	return s.IsValid() && s != StatusResolved
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	return s.IsValid() && len(statusTransitions[s]) == 0
}

// AllowedTransitions returns the statuses reachable from s in one step.
func (s Status) AllowedTransitions() []Status {
	next := statusTransitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransitionTo reports whether target is reachable from s in one step.
// Staying on the same status is not a transition.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range statusTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// ParseStatus normalizes user input into a Status.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	return st, st.IsValid()
}

// Incident is a tracked operational problem.
//
// ResolvedAt, ResolvedBy and ResolutionNotes are either all nil (not resolved)
// or all set (resolved).
type Incident struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Priority        Priority   `json:"priority"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolvedBy      *string    `json:"resolved_by"`
	ResolutionNotes *string    `json:"resolution_notes"`
}

// IsResolved returns true once the incident reached its terminal status.
func (i *Incident) IsResolved() bool {
	return i.Status == StatusResolved
}

// Age returns how long the incident has existed at the given instant.
func (i *Incident) Age(now time.Time) time.Duration {
	return now.Sub(i.CreatedAt)
}

// TimeToResolve returns resolved_at - created_at, or false if not resolved.
func (i *Incident) TimeToResolve() (time.Duration, bool) {
	if i.ResolvedAt == nil {
		return 0, false
	}
	return i.ResolvedAt.Sub(i.CreatedAt), true
}

// Clone returns a deep copy so callers can stage changes without touching the original.
func (i *Incident) Clone() *Incident {
	c := *i
	if i.ResolvedAt != nil {
		t := *i.ResolvedAt
		c.ResolvedAt = &t
	}
	if i.ResolvedBy != nil {
		s := *i.ResolvedBy
		c.ResolvedBy = &s
	}
	if i.ResolutionNotes != nil {
		s := *i.ResolutionNotes
		c.ResolutionNotes = &s
	}
	return &c
}
