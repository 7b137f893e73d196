package triage

import (
	"testing"

	"github.com/bissquit/ops-triage-hub/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggest_CheckoutOutage(t *testing.T) {
	s := New(nil).Suggest("Checkout down", "All EU checkout failing since 10:00")

	assert.Equal(t, domain.PriorityP0, s.SuggestedPriority)
	assert.Equal(t, []string{"outage", "payment/checkout", "degradation"}, s.Signals)
	assert.Contains(t, s.Rationale, "outage (down)")
	assert.Contains(t, s.Rationale, "payment/checkout (checkout)")
	require.Len(t, s.NextSteps, MaxNextSteps)
	assert.Equal(t, "Assign an owner (On-call)", s.NextSteps[0])
	assert.Equal(t, "Check payment provider status and error rates", s.NextSteps[4])
}

func TestSuggest_Priorities(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
		want        domain.Priority
		signals     []string
	}{
		{
			name:        "security",
			title:       "Leaked API keys",
			description: "Credentials leaked in a public repository",
			want:        domain.PriorityP0,
			signals:     []string{"security"},
		},
		{
			name:        "data loss phrase",
			title:       "Orders table",
			description: "Possible data loss after the last migration",
			want:        domain.PriorityP0,
			signals:     []string{"data loss"},
		},
		{
			name:        "payment only",
			title:       "Refund mismatch",
			description: "A refund was issued twice to the same card",
			want:        domain.PriorityP1,
			signals:     []string{"payment/checkout"},
		},
		{
			name:        "degradation",
			title:       "API latency",
			description: "p99 latency doubled for the search API",
			want:        domain.PriorityP1,
			signals:     []string{"degradation"},
		},
		{
			name:        "pressure",
			title:       "Webhook backlog",
			description: "Partner notifications are queued and slow to drain",
			want:        domain.PriorityP2,
			signals:     []string{"operational pressure"},
		},
		{
			name:        "case insensitive",
			title:       "MAJOR OUTAGE",
			description: "Nothing loads for anyone right now",
			want:        domain.PriorityP0,
			signals:     []string{"outage"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil).Suggest(tt.title, tt.description)
			assert.Equal(t, tt.want, s.SuggestedPriority)
			assert.Equal(t, tt.signals, s.Signals)
			assert.NotEmpty(t, s.Rationale)
			assert.LessOrEqual(t, len(s.NextSteps), MaxNextSteps)
		})
	}
}

func TestSuggest_NoSignals(t *testing.T) {
	s := New(nil).Suggest("Typo on about page", "The footer says 2019 instead of the current year")

	assert.Equal(t, DefaultPriority, s.SuggestedPriority)
	assert.Contains(t, s.Rationale, "No known impact signals matched")
	assert.NotEmpty(t, s.NextSteps)
	assert.Empty(t, s.Signals)
}

func TestSuggest_MatchesWholeWords(t *testing.T) {
	s := New(nil).Suggest("Download page copy", "Update the download instructions for the CLI")

	assert.Equal(t, DefaultPriority, s.SuggestedPriority)
	assert.Empty(t, s.Signals)
}

func TestSuggest_Deterministic(t *testing.T) {
	tr := New(nil)
	first := tr.Suggest("Payments failing", "Checkout returns 500 for all users")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, tr.Suggest("Payments failing", "Checkout returns 500 for all users"))
	}
}

func TestSuggest_StepsDedupedInRuleOrder(t *testing.T) {
	rules := []Rule{
		{Signal: "a", Keywords: []string{"alpha"}, Floor: domain.PriorityP2, Steps: []string{"one", "two"}},
		{Signal: "b", Keywords: []string{"beta"}, Floor: domain.PriorityP1, Steps: []string{"two", "three"}},
		{Signal: "c", Keywords: []string{"gamma"}, Floor: domain.PriorityP3, Steps: []string{"four", "five", "six"}},
	}

	s := New(rules).Suggest("alpha beta", "gamma and more words")

	assert.Equal(t, domain.PriorityP1, s.SuggestedPriority)
	assert.Equal(t, []string{"one", "two", "three", "four", "five"}, s.NextSteps)
	assert.Equal(t, []string{"a", "b", "c"}, s.Signals)
}
