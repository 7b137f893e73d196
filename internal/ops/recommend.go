package ops

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bissquit/ops-triage-hub/internal/domain"
)

// Recommendation action types.
const (
	ActionResolveBreach       = "resolve_sla_breach"
	ActionAdvanceIncident     = "advance_incident"
	ActionReduceBreachLoad    = "reduce_breach_load"
	ActionCleanupAgedBacklog  = "cleanup_aged_backlog"
	ActionReduceActiveBacklog = "reduce_active_backlog"
)

// TargetIncident identifies an incident a recommendation is grounded on.
type TargetIncident struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Priority domain.Priority `json:"priority"`
	Status   domain.Status   `json:"status"`
}

// Recommendation is one ranked next step.
type Recommendation struct {
	Rank               int              `json:"rank"`
	ActionType         string           `json:"action_type"`
	Title              string           `json:"title"`
	Why                string           `json:"why"`
	ExpectedImpact     string           `json:"expected_impact"`
	SuggestedOwnerRole string           `json:"suggested_owner_role"`
	Playbook           []string         `json:"playbook"`
	TargetIncidents    []TargetIncident `json:"target_incidents"`
}

// RecommendationReport is the response of the recommendation engine.
type RecommendationReport struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	HealthStatus    HealthStatus     `json:"health_status"`
	Recommendations []Recommendation `json:"recommendations"`
}

// rankedIncident carries the ranking key of one active incident.
type rankedIncident struct {
	incident *domain.Incident
	age      time.Duration
	sla      time.Duration
	breached bool
}

// Recommend builds the full ranked list for the active snapshot. Incident-driven
// items come first ordered by severity, then breach, then age (older first).
// Aggregate items follow, each only when its health condition fired.
func Recommend(now time.Time, active []*domain.Incident, health *Health, policy Policy) []Recommendation {
	ranked := make([]rankedIncident, 0, len(active))
	for _, inc := range active {
		if !inc.Status.IsActive() {
			continue
		}
		age := inc.Age(now)
		sla := policy.slaFor(inc.Priority)
		ranked = append(ranked, rankedIncident{incident: inc, age: age, sla: sla, breached: age > sla})
	}
	slices.SortStableFunc(ranked, compareRanked)

	recs := make([]Recommendation, 0, len(ranked)+3)
	for _, r := range ranked {
		recs = append(recs, incidentRecommendation(r))
	}
	recs = append(recs, aggregateRecommendations(health, policy)...)

	for i := range recs {
		recs[i].Rank = i + 1
	}
	return recs
}

func compareRanked(a, b rankedIncident) int {
	if c := a.incident.Priority.Severity() - b.incident.Priority.Severity(); c != 0 {
		return c
	}
	if a.breached != b.breached {
		if a.breached {
			return -1
		}
		return 1
	}
	if c := a.incident.CreatedAt.Compare(b.incident.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.incident.ID, b.incident.ID)
}

func incidentRecommendation(r rankedIncident) Recommendation {
	inc := r.incident
	rec := Recommendation{
		SuggestedOwnerRole: ownerFor(inc.Priority),
		Playbook:           playbookFor(inc.Status),
		TargetIncidents:    []TargetIncident{target(inc)},
	}

	if r.breached {
		rec.ActionType = ActionResolveBreach
		rec.Title = fmt.Sprintf("Resolve %s SLA breach: %s", inc.Priority, inc.Title)
		rec.Why = fmt.Sprintf("%s incident %q has been %s for %s against a %s SLA (%s overdue).",
			inc.Priority, inc.Title, inc.Status, formatMinutes(r.age), formatMinutes(r.sla), formatMinutes(r.age-r.sla))
		if inc.Priority == domain.PriorityP0 {
			rec.ExpectedImpact = "High: clears a red health trigger"
		} else {
			rec.ExpectedImpact = "Medium-High: lowers the breach count"
		}
		return rec
	}

	rec.ActionType = ActionAdvanceIncident
	rec.Title = fmt.Sprintf("Advance %s incident: %s", inc.Priority, inc.Title)
	rec.Why = fmt.Sprintf("%s incident %q is %s, %s old with %s left before its %s SLA.",
		inc.Priority, inc.Title, inc.Status, formatMinutes(r.age), formatMinutes(r.sla-r.age), formatMinutes(r.sla))
	if inc.Priority.Severity() <= domain.PriorityP1.Severity() {
		rec.ExpectedImpact = "Medium: prevents an SLA breach"
	} else {
		rec.ExpectedImpact = "Low: keeps the backlog moving"
	}
	return rec
}

func aggregateRecommendations(health *Health, policy Policy) []Recommendation {
	if health == nil {
		return nil
	}

	var recs []Recommendation
	if health.BreachedTotal > policy.BreachedHighWater {
		recs = append(recs, Recommendation{
			ActionType: ActionReduceBreachLoad,
			Title:      "Clear the most overdue SLA breaches",
			Why: fmt.Sprintf("%d active incidents breach their SLA, above the limit of %d.",
				health.BreachedTotal, policy.BreachedHighWater),
			ExpectedImpact:     "Medium-High: moves health off red",
			SuggestedOwnerRole: "Ops Lead",
			Playbook: []string{
				"Confirm each breach is real work (dedupe noise)",
				"Escalate blockers",
				"Resolve or reclassify with clear notes",
			},
			TargetIncidents: breachTargets(health.Breached, reasonTopIncidents),
		})
	}
	if health.AgingBuckets.AtLeast24h > policy.AgedHighWater {
		recs = append(recs, Recommendation{
			ActionType: ActionCleanupAgedBacklog,
			Title:      "Reduce the 24h+ backlog",
			Why: fmt.Sprintf("%d active incidents are older than 24h, above the limit of %d.",
				health.AgingBuckets.AtLeast24h, policy.AgedHighWater),
			ExpectedImpact:     "Medium: restores signal quality",
			SuggestedOwnerRole: "Support",
			Playbook: []string{
				"Close duplicates and invalid incidents",
				"Downgrade low-impact items",
				"Assign an owner and next action",
			},
			TargetIncidents: breachTargets(health.Breached, reasonTopIncidents),
		})
	}
	if health.ActiveTotal > policy.ActiveMediumWater {
		recs = append(recs, Recommendation{
			ActionType: ActionReduceActiveBacklog,
			Title:      "Reduce the active incident backlog",
			Why: fmt.Sprintf("%d incidents are active, above the limit of %d.",
				health.ActiveTotal, policy.ActiveMediumWater),
			ExpectedImpact:     "Medium: frees on-call capacity",
			SuggestedOwnerRole: "Ops Lead",
			Playbook: []string{
				"Merge incidents with a shared root cause",
				"Hand low-priority items to owning teams",
			},
			TargetIncidents: breachTargets(health.Breached, reasonTopIncidents),
		})
	}
	return recs
}

// BuildReport ranks recommendations and keeps the first topN.
func BuildReport(now time.Time, active []*domain.Incident, health *Health, policy Policy, topN int) *RecommendationReport {
	recs := Recommend(now, active, health, policy)
	return &RecommendationReport{
		GeneratedAt:     now,
		HealthStatus:    health.Status,
		Recommendations: recs[:min(len(recs), topN)],
	}
}

func ownerFor(p domain.Priority) string {
	switch p {
	case domain.PriorityP0, domain.PriorityP1:
		return "On-call"
	case domain.PriorityP2:
		return "Ops Lead"
	}
	return "Support"
}

func playbookFor(s domain.Status) []string {
	switch s {
	case domain.StatusOpen:
		return []string{"Assign an owner", "Confirm blast radius", "Move to investigating"}
	case domain.StatusInvestigating:
		return []string{"Identify the change or dependency at fault", "Mitigate (rollback, flag or traffic shift)", "Post a status update"}
	case domain.StatusMitigated:
		return []string{"Verify recovery metrics", "Resolve with resolution notes"}
	}
	return []string{}
}

func target(inc *domain.Incident) TargetIncident {
	return TargetIncident{ID: inc.ID, Title: inc.Title, Priority: inc.Priority, Status: inc.Status}
}

func breachTargets(breaches []Breach, n int) []TargetIncident {
	out := make([]TargetIncident, 0, min(len(breaches), n))
	for _, b := range head(breaches, n) {
		out = append(out, TargetIncident{ID: b.ID, Title: b.Title, Priority: b.Priority, Status: b.Status})
	}
	return out
}

// formatMinutes renders a duration as "45m" or "3h05m".
func formatMinutes(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	m := int(d / time.Minute)
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", m/60, m%60)
}
