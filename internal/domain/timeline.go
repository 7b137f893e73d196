package domain

import "time"

// TimelineEventType represents the kind of change recorded in an incident timeline.
type TimelineEventType string

// Timeline event types.
const (
	TimelineEventCreated         TimelineEventType = "created"
	TimelineEventStatusChanged   TimelineEventType = "status_changed"
	TimelineEventPriorityChanged TimelineEventType = "priority_changed"
	TimelineEventNoteAdded       TimelineEventType = "note_added"
	TimelineEventResolved        TimelineEventType = "resolved"
)

// IsValid checks if the event type is valid.
func (t TimelineEventType) IsValid() bool {
	switch t {
	case TimelineEventCreated, TimelineEventStatusChanged, TimelineEventPriorityChanged,
		TimelineEventNoteAdded, TimelineEventResolved:
		return true
	}
	return false
}

// TimelineEvent is one immutable audit record of a change to an incident.
//
// Seq is assigned by the store on append and is the authoritative order key;
// CreatedAt is kept for display.
type TimelineEvent struct {
	ID         string            `json:"id"`
	IncidentID string            `json:"incident_id"`
	Seq        int64             `json:"seq"`
	Type       TimelineEventType `json:"event_type"`
	OldValue   *string           `json:"old_value"`
	NewValue   *string           `json:"new_value"`
	Note       *string           `json:"note"`
	CreatedAt  time.Time         `json:"created_at"`
}
