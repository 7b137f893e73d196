package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     Status
		to       Status
		expected bool
	}{
		{StatusOpen, StatusInvestigating, true},
		{StatusOpen, StatusMitigated, false},
		{StatusOpen, StatusResolved, false},
		{StatusOpen, StatusOpen, false},
		{StatusInvestigating, StatusMitigated, true},
		{StatusInvestigating, StatusResolved, true},
		{StatusInvestigating, StatusOpen, false},
		{StatusInvestigating, StatusInvestigating, false},
		{StatusMitigated, StatusResolved, true},
		{StatusMitigated, StatusInvestigating, false},
		{StatusMitigated, StatusOpen, false},
		{StatusResolved, StatusOpen, false},
		{StatusResolved, StatusInvestigating, false},
		{StatusResolved, StatusMitigated, false},
		{StatusResolved, StatusResolved, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatus_ForwardOnly(t *testing.T) {
	order := map[Status]int{}
	for i, s := range Statuses {
		order[s] = i
	}

	for _, from := range Statuses {
		for _, to := range from.AllowedTransitions() {
			assert.Greater(t, order[to], order[from], "%s -> %s must move forward", from, to)
		}
	}
	assert.True(t, StatusResolved.IsTerminal())
	assert.Empty(t, StatusResolved.AllowedTransitions())
}

func TestStatus_AllowedTransitionsReturnsCopy(t *testing.T) {
	next := StatusInvestigating.AllowedTransitions()
	next[0] = StatusOpen

	assert.Equal(t, []Status{StatusMitigated, StatusResolved}, StatusInvestigating.AllowedTransitions())
}

func TestParsePriority(t *testing.T) {
	p, ok := ParsePriority(" p1 ")
	assert.True(t, ok)
	assert.Equal(t, PriorityP1, p)

	_, ok = ParsePriority("P4")
	assert.False(t, ok)

	_, ok = ParsePriority("")
	assert.False(t, ok)
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("Investigating")
	assert.True(t, ok)
	assert.Equal(t, StatusInvestigating, s)

	_, ok = ParseStatus("closed")
	assert.False(t, ok)
}

func TestPriority_Severity(t *testing.T) {
	assert.True(t, PriorityP0.MoreSevereThan(PriorityP1))
	assert.True(t, PriorityP2.MoreSevereThan(PriorityP3))
	assert.False(t, PriorityP3.MoreSevereThan(PriorityP3))
	assert.Equal(t, 4, Priority("P9").Severity())
}

func TestIncident_Clone(t *testing.T) {
	resolvedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	by := "On-call"
	notes := "rolled back"
	inc := &Incident{
		ID:              "a",
		Status:          StatusResolved,
		CreatedAt:       resolvedAt.Add(-time.Hour),
		ResolvedAt:      &resolvedAt,
		ResolvedBy:      &by,
		ResolutionNotes: &notes,
	}

	c := inc.Clone()
	*c.ResolvedBy = "Support"
	*c.ResolvedAt = resolvedAt.Add(time.Hour)

	assert.Equal(t, "On-call", *inc.ResolvedBy)
	assert.Equal(t, resolvedAt, *inc.ResolvedAt)

	ttr, ok := inc.TimeToResolve()
	require.True(t, ok)
	assert.Equal(t, time.Hour, ttr)
}
