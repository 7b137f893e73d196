// Package repotest holds behavioral tests shared by every incidents.Repository backend.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/ops-triage-hub/internal/domain"
	"github.com/bissquit/ops-triage-hub/internal/incidents"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty repository for a single subtest.
type Factory func(t *testing.T) incidents.Repository

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Run exercises the repository contract against repositories built by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		inc, created := newIncident("db latency", domain.PriorityP1, base)
		require.NoError(t, repo.CreateIncident(ctx, inc, created))
		assert.Positive(t, created.Seq)

		got, err := repo.GetIncident(ctx, inc.ID)
		require.NoError(t, err)
		assert.Equal(t, inc.Title, got.Title)
		assert.Equal(t, domain.PriorityP1, got.Priority)
		assert.Equal(t, domain.StatusOpen, got.Status)
		assert.True(t, inc.CreatedAt.Equal(got.CreatedAt))
		assert.Nil(t, got.ResolvedAt)
		assert.Nil(t, got.ResolvedBy)
		assert.Nil(t, got.ResolutionNotes)

		timeline, err := repo.ListTimeline(ctx, inc.ID)
		require.NoError(t, err)
		require.Len(t, timeline, 1)
		assert.Equal(t, domain.TimelineEventCreated, timeline[0].Type)
		assert.Equal(t, created.Seq, timeline[0].Seq)
	})

	t.Run("get unknown incident", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetIncident(context.Background(), uuid.NewString())
		assert.ErrorIs(t, err, incidents.ErrIncidentNotFound)
	})

	t.Run("update appends events in order", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		inc, created := newIncident("checkout errors", domain.PriorityP2, base)
		require.NoError(t, repo.CreateIncident(ctx, inc, created))

		at := base.Add(time.Hour)
		updated := inc.Clone()
		updated.Status = domain.StatusInvestigating
		updated.Priority = domain.PriorityP0
		updated.UpdatedAt = at
		events := []*domain.TimelineEvent{
			newEvent(inc.ID, domain.TimelineEventStatusChanged, at),
			newEvent(inc.ID, domain.TimelineEventPriorityChanged, at),
			newEvent(inc.ID, domain.TimelineEventNoteAdded, at),
		}
		require.NoError(t, repo.UpdateIncident(ctx, updated, domain.StatusOpen, events))

		got, err := repo.GetIncident(ctx, inc.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusInvestigating, got.Status)
		assert.Equal(t, domain.PriorityP0, got.Priority)
		assert.True(t, at.Equal(got.UpdatedAt))

		timeline, err := repo.ListTimeline(ctx, inc.ID)
		require.NoError(t, err)
		require.Len(t, timeline, 4)
		wantTypes := []domain.TimelineEventType{
			domain.TimelineEventCreated,
			domain.TimelineEventStatusChanged,
			domain.TimelineEventPriorityChanged,
			domain.TimelineEventNoteAdded,
		}
		for i, e := range timeline {
			assert.Equal(t, wantTypes[i], e.Type)
			if i > 0 {
				assert.Greater(t, e.Seq, timeline[i-1].Seq)
			}
		}
	})

	t.Run("update unknown incident", func(t *testing.T) {
		repo := newRepo(t)

		inc, _ := newIncident("ghost", domain.PriorityP3, base)
		err := repo.UpdateIncident(context.Background(), inc, domain.StatusOpen, nil)
		assert.ErrorIs(t, err, incidents.ErrIncidentNotFound)
	})

	t.Run("resolution fields round trip", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		inc, created := newIncident("queue backlog", domain.PriorityP2, base)
		require.NoError(t, repo.CreateIncident(ctx, inc, created))

		resolved := resolve(inc, base.Add(90*time.Minute))
		require.NoError(t, repo.UpdateIncident(ctx, resolved, domain.StatusOpen, []*domain.TimelineEvent{
			newEvent(inc.ID, domain.TimelineEventStatusChanged, *resolved.ResolvedAt),
			newEvent(inc.ID, domain.TimelineEventResolved, *resolved.ResolvedAt),
		}))

		got, err := repo.GetIncident(ctx, inc.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ResolvedAt)
		assert.True(t, resolved.ResolvedAt.Equal(*got.ResolvedAt))
		require.NotNil(t, got.ResolvedBy)
		assert.Equal(t, "On-call", *got.ResolvedBy)
		require.NotNil(t, got.ResolutionNotes)
		assert.Equal(t, "rolled back deploy", *got.ResolutionNotes)
	})

	t.Run("list filters and ordering", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		oldest, e1 := newIncident("oldest", domain.PriorityP3, base.Add(-3*time.Hour))
		middle, e2 := newIncident("middle", domain.PriorityP1, base.Add(-2*time.Hour))
		newest, e3 := newIncident("newest", domain.PriorityP0, base.Add(-1*time.Hour))
		for _, c := range []struct {
			inc *domain.Incident
			ev  *domain.TimelineEvent
		}{{oldest, e1}, {middle, e2}, {newest, e3}} {
			require.NoError(t, repo.CreateIncident(ctx, c.inc, c.ev))
		}

		// oldest resolves last, middle resolves first
		r1 := resolve(middle, base.Add(10*time.Minute))
		r2 := resolve(oldest, base.Add(20*time.Minute))
		require.NoError(t, repo.UpdateIncident(ctx, r1, domain.StatusOpen, []*domain.TimelineEvent{newEvent(middle.ID, domain.TimelineEventResolved, base)}))
		require.NoError(t, repo.UpdateIncident(ctx, r2, domain.StatusOpen, []*domain.TimelineEvent{newEvent(oldest.ID, domain.TimelineEventResolved, base)}))

		count, err := repo.CountIncidents(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		active, err := repo.ListIncidents(ctx, incidents.IncidentFilter{ActiveOnly: true})
		require.NoError(t, err)
		assert.Equal(t, []string{newest.ID}, ids(active))

		all, err := repo.ListIncidents(ctx, incidents.IncidentFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{newest.ID, middle.ID, oldest.ID}, ids(all))

		status := domain.StatusResolved
		resolvedList, err := repo.ListIncidents(ctx, incidents.IncidentFilter{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, []string{oldest.ID, middle.ID}, ids(resolvedList))

		since := base.Add(15 * time.Minute)
		recent, err := repo.ListIncidents(ctx, incidents.IncidentFilter{ResolvedSince: &since})
		require.NoError(t, err)
		assert.Equal(t, []string{oldest.ID}, ids(recent))

		limited, err := repo.ListIncidents(ctx, incidents.IncidentFilter{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{newest.ID, middle.ID}, ids(limited))
	})

	t.Run("update staged against a stale status", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		inc, created := newIncident("replica lag", domain.PriorityP1, base)
		require.NoError(t, repo.CreateIncident(ctx, inc, created))

		resolved := resolve(inc, base.Add(time.Hour))
		require.NoError(t, repo.UpdateIncident(ctx, resolved, domain.StatusOpen, []*domain.TimelineEvent{
			newEvent(inc.ID, domain.TimelineEventResolved, base.Add(time.Hour)),
		}))

		// A second writer that read the incident while it was still open.
		late := resolve(inc, base.Add(2*time.Hour))
		err := repo.UpdateIncident(ctx, late, domain.StatusOpen, []*domain.TimelineEvent{
			newEvent(inc.ID, domain.TimelineEventResolved, base.Add(2*time.Hour)),
		})
		assert.ErrorIs(t, err, incidents.ErrInvalidTransition)

		got, err := repo.GetIncident(ctx, inc.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ResolvedAt)
		assert.True(t, resolved.ResolvedAt.Equal(*got.ResolvedAt))

		timeline, err := repo.ListTimeline(ctx, inc.ID)
		require.NoError(t, err)
		assert.Len(t, timeline, 2)
	})

	t.Run("resolved since the unix epoch", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		inc, created := newIncident("dns flaps", domain.PriorityP0, base.Add(-2*time.Hour))
		require.NoError(t, repo.CreateIncident(ctx, inc, created))
		require.NoError(t, repo.UpdateIncident(ctx, resolve(inc, base), domain.StatusOpen, nil))

		ninetyDays := base.AddDate(0, 0, -90)
		windowed, err := repo.ListIncidents(ctx, incidents.IncidentFilter{ResolvedSince: &ninetyDays})
		require.NoError(t, err)

		epoch := time.Unix(0, 0).UTC()
		unbounded, err := repo.ListIncidents(ctx, incidents.IncidentFilter{ResolvedSince: &epoch})
		require.NoError(t, err)

		assert.Equal(t, []string{inc.ID}, ids(windowed))
		assert.Equal(t, ids(windowed), ids(unbounded))
	})

	t.Run("timeline of unknown incident is empty", func(t *testing.T) {
		repo := newRepo(t)

		events, err := repo.ListTimeline(context.Background(), uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func newIncident(title string, priority domain.Priority, createdAt time.Time) (*domain.Incident, *domain.TimelineEvent) {
	inc := &domain.Incident{
		ID:          uuid.NewString(),
		Title:       title,
		Description: title + " description",
		Priority:    priority,
		Status:      domain.StatusOpen,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	return inc, newEvent(inc.ID, domain.TimelineEventCreated, createdAt)
}

func newEvent(incidentID string, eventType domain.TimelineEventType, at time.Time) *domain.TimelineEvent {
	return &domain.TimelineEvent{
		ID:         uuid.NewString(),
		IncidentID: incidentID,
		Type:       eventType,
		CreatedAt:  at,
	}
}

func resolve(inc *domain.Incident, at time.Time) *domain.Incident {
	r := inc.Clone()
	by := "On-call"
	notes := "rolled back deploy"
	r.Status = domain.StatusResolved
	r.UpdatedAt = at
	r.ResolvedAt = &at
	r.ResolvedBy = &by
	r.ResolutionNotes = &notes
	return r
}

func ids(list []*domain.Incident) []string {
	out := make([]string, 0, len(list))
	for _, inc := range list {
		out = append(out, inc.ID)
	}
	return out
}
