package ops

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bissquit/ops-triage-hub/internal/domain"
	"github.com/shopspring/decimal"
)

// HealthStatus is the traffic-light classification of operational health.
type HealthStatus string

// Health statuses, from best to worst.
const (
	HealthGreen HealthStatus = "green"
	HealthAmber HealthStatus = "amber"
	HealthRed   HealthStatus = "red"
)

// Level orders statuses: green 0, amber 1, red 2.
func (s HealthStatus) Level() int {
	switch s {
	case HealthRed:
		return 2
	case HealthAmber:
		return 1
	}
	return 0
}

// Reason codes that drive the health status.
const (
	ReasonP0Breach      = "sla_breach_p0"
	ReasonBreachesTotal = "sla_breaches_total"
	ReasonActiveBacklog = "active_backlog"
	ReasonAged24h       = "aging_24h"
)

const reasonTopIncidents = 3

// Breach describes an active incident older than its priority's SLA.
type Breach struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Priority       domain.Priority `json:"priority"`
	Status         domain.Status   `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	AgeMinutes     int             `json:"age_minutes"`
	SLAMinutes     int             `json:"sla_minutes"`
	OverdueMinutes int             `json:"overdue_minutes"`
}

// AgingBuckets counts active incidents by age.
type AgingBuckets struct {
	LessThan15m int `json:"lt_15m"`
	From15To60m int `json:"m15_60"`
	From1To4h   int `json:"h1_4"`
	From4To24h  int `json:"h4_24"`
	AtLeast24h  int `json:"gte_24h"`
}

// Reason is one fired health trigger.
type Reason struct {
	Code         string   `json:"code"`
	Label        string   `json:"label"`
	TopIncidents []Breach `json:"top_incidents"`
}

// MTTR is the mean time to resolution over a trailing window.
type MTTR struct {
	WindowDays    int      `json:"window_days"`
	ResolvedCount int      `json:"resolved_count"`
	AvgMinutes    *float64 `json:"avg_minutes"`
}

// Health is a point-in-time operational health score.
type Health struct {
	GeneratedAt   time.Time               `json:"generated_at"`
	Status        HealthStatus            `json:"status"`
	ActiveTotal   int                     `json:"active_total"`
	BreachedTotal int                     `json:"breached_total"`
	AgingBuckets  AgingBuckets            `json:"aging_buckets"`
	SLAMinutes    map[domain.Priority]int `json:"sla"`
	Breached      []Breach                `json:"breached"`
	MTTR          MTTR                    `json:"mttr"`
	Reasons       []Reason                `json:"reasons"`
	Summary       string                  `json:"summary"`
}

// ComputeHealth scores the active snapshot. resolved should hold incidents
// resolved within the policy's MTTR window; others are ignored.
func ComputeHealth(now time.Time, active, resolved []*domain.Incident, policy Policy) *Health {
	breaches := findBreaches(now, active, policy)
	buckets := ageBuckets(now, active)

	h := &Health{
		GeneratedAt:   now,
		ActiveTotal:   countActive(active),
		BreachedTotal: len(breaches),
		AgingBuckets:  buckets,
		SLAMinutes:    make(map[domain.Priority]int, len(domain.Priorities)),
		Breached:      breaches[:min(len(breaches), policy.BreachListLimit)],
		MTTR:          computeMTTR(now, resolved, policy.MTTRWindowDays),
		Reasons:       make([]Reason, 0, 4),
	}
	for _, prio := range domain.Priorities {
		h.SLAMinutes[prio] = int(policy.slaFor(prio) / time.Minute)
	}

	var p0 []Breach
	for _, b := range breaches {
		if b.Priority == domain.PriorityP0 {
			p0 = append(p0, b)
		}
	}

	if len(p0) > 0 {
		h.Reasons = append(h.Reasons, Reason{
			Code:         ReasonP0Breach,
			Label:        fmt.Sprintf("%d P0 SLA breach(es)", len(p0)),
			TopIncidents: head(p0, reasonTopIncidents),
		})
	}
	if len(breaches) > policy.BreachedHighWater {
		h.Reasons = append(h.Reasons, Reason{
			Code:         ReasonBreachesTotal,
			Label:        fmt.Sprintf("%d total SLA breaches (> %d)", len(breaches), policy.BreachedHighWater),
			TopIncidents: head(breaches, reasonTopIncidents),
		})
	}
	if h.ActiveTotal > policy.ActiveMediumWater {
		h.Reasons = append(h.Reasons, Reason{
			Code:         ReasonActiveBacklog,
			Label:        fmt.Sprintf("%d active incidents (> %d)", h.ActiveTotal, policy.ActiveMediumWater),
			TopIncidents: head(breaches, reasonTopIncidents),
		})
	}
	if buckets.AtLeast24h > policy.AgedHighWater {
		h.Reasons = append(h.Reasons, Reason{
			Code:         ReasonAged24h,
			Label:        fmt.Sprintf("%d incidents aged 24h+ (> %d)", buckets.AtLeast24h, policy.AgedHighWater),
			TopIncidents: head(breaches, reasonTopIncidents),
		})
	}

	h.Status = classify(h.Reasons, h.BreachedTotal)
	h.Summary = summarize(h)
	return h
}

func classify(reasons []Reason, breached int) HealthStatus {
	for _, r := range reasons {
		if r.Code == ReasonP0Breach || r.Code == ReasonBreachesTotal {
			return HealthRed
		}
	}
	if len(reasons) > 0 || breached > 0 {
		return HealthAmber
	}
	return HealthGreen
}

// findBreaches returns active incidents whose age exceeds their SLA, most overdue first.
func findBreaches(now time.Time, active []*domain.Incident, policy Policy) []Breach {
	out := make([]Breach, 0)
	for _, inc := range active {
		if !inc.Status.IsActive() {
			continue
		}
		age := inc.Age(now)
		sla := policy.slaFor(inc.Priority)
		if age <= sla {
			continue
		}
		out = append(out, Breach{
			ID:             inc.ID,
			Title:          inc.Title,
			Priority:       inc.Priority,
			Status:         inc.Status,
			CreatedAt:      inc.CreatedAt,
			AgeMinutes:     int(age / time.Minute),
			SLAMinutes:     int(sla / time.Minute),
			OverdueMinutes: int((age - sla) / time.Minute),
		})
	}

	slices.SortStableFunc(out, func(a, b Breach) int {
		if a.OverdueMinutes != b.OverdueMinutes {
			return b.OverdueMinutes - a.OverdueMinutes
		}
		if c := a.Priority.Severity() - b.Priority.Severity(); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func ageBuckets(now time.Time, active []*domain.Incident) AgingBuckets {
	var b AgingBuckets
	for _, inc := range active {
		if !inc.Status.IsActive() {
			continue
		}
		switch age := inc.Age(now); {
		case age < 15*time.Minute:
			b.LessThan15m++
		case age < time.Hour:
			b.From15To60m++
		case age < 4*time.Hour:
			b.From1To4h++
		case age < 24*time.Hour:
			b.From4To24h++
		default:
			b.AtLeast24h++
		}
	}
	return b
}

func countActive(list []*domain.Incident) int {
	n := 0
	for _, inc := range list {
		if inc.Status.IsActive() {
			n++
		}
	}
	return n
}

func computeMTTR(now time.Time, resolved []*domain.Incident, windowDays int) MTTR {
	eligible := resolvedWithin(resolved, windowStart(now, windowDays), now)
	return MTTR{
		WindowDays:    windowDays,
		ResolvedCount: len(eligible),
		AvgMinutes:    averageMinutes(eligible),
	}
}

// resolvedWithin keeps incidents with resolved_at in [from, to].
func resolvedWithin(list []*domain.Incident, from, to time.Time) []*domain.Incident {
	out := make([]*domain.Incident, 0, len(list))
	for _, inc := range list {
		if inc.ResolvedAt == nil || inc.ResolvedAt.Before(from) || inc.ResolvedAt.After(to) {
			continue
		}
		out = append(out, inc)
	}
	return out
}

var microsPerMinute = decimal.NewFromInt(int64(time.Minute / time.Microsecond))

// averageMinutes is the mean resolution time in minutes rounded to one decimal,
// or nil for an empty set.
func averageMinutes(list []*domain.Incident) *float64 {
	if len(list) == 0 {
		return nil
	}

	sum := decimal.Zero
	for _, inc := range list {
		d, _ := inc.TimeToResolve()
		sum = sum.Add(decimal.NewFromInt(d.Microseconds()).Div(microsPerMinute))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(list)))).Round(1).InexactFloat64()
	return &avg
}

// summarize renders the deterministic one-paragraph health summary.
func summarize(h *Health) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Operational health is %s: %d active incident(s)", strings.ToUpper(string(h.Status)), h.ActiveTotal)

	if h.BreachedTotal == 0 {
		sb.WriteString(", no SLA breaches")
	} else {
		fmt.Fprintf(&sb, ", %d breaching SLA (mostly %s)", h.BreachedTotal, dominantPriority(h.Breached))
	}

	if len(h.Reasons) == 0 {
		sb.WriteString(". No key risk triggers detected.")
		return sb.String()
	}

	labels := make([]string, 0, len(h.Reasons))
	for _, r := range h.Reasons {
		labels = append(labels, r.Label)
	}
	fmt.Fprintf(&sb, ". Triggers: %s.", strings.Join(labels, "; "))
	if h.Status == HealthRed {
		sb.WriteString(" Immediate action required.")
	}
	return sb.String()
}

// dominantPriority returns the priority with the most breaches; ties go to the more severe one.
func dominantPriority(breaches []Breach) domain.Priority {
	counts := make(map[domain.Priority]int)
	for _, b := range breaches {
		counts[b.Priority]++
	}
	best := domain.PriorityP3
	bestCount := -1
	for _, prio := range domain.Priorities {
		if counts[prio] > bestCount {
			best, bestCount = prio, counts[prio]
		}
	}
	return best
}

func head[T any](list []T, n int) []T {
	out := make([]T, min(len(list), n))
	copy(out, list)
	return out
}
