package ops

import (
	"slices"
	"strings"
	"time"

	"github.com/bissquit/ops-triage-hub/internal/domain"
)

const unassignedResolver = "Unassigned"

// ResolverCount is one entry of the top resolvers ranking.
type ResolverCount struct {
	Resolver      string `json:"resolver"`
	ResolvedCount int    `json:"resolved_count"`
}

// KPISnapshot aggregates incidents resolved within a window.
type KPISnapshot struct {
	GeneratedAt     time.Time       `json:"generated_at"`
	WindowDays      int             `json:"window_days"`
	ResolvedCount   int             `json:"resolved_count"`
	P0ResolvedCount int             `json:"p0_resolved_count"`
	AvgMTTRMinutes  *float64        `json:"avg_mttr_minutes"`
	TopResolvers    []ResolverCount `json:"top_resolvers"`
}

// ComputeKPIs aggregates the incidents resolved in [now - windowDays, now].
func ComputeKPIs(now time.Time, windowDays int, resolved []*domain.Incident, topResolvers int) *KPISnapshot {
	eligible := resolvedWithin(resolved, windowStart(now, windowDays), now)

	snap := &KPISnapshot{
		GeneratedAt:    now,
		WindowDays:     windowDays,
		ResolvedCount:  len(eligible),
		AvgMTTRMinutes: averageMinutes(eligible),
	}

	byResolver := make(map[string]int)
	for _, inc := range eligible {
		if inc.Priority == domain.PriorityP0 {
			snap.P0ResolvedCount++
		}
		resolver := unassignedResolver
		if inc.ResolvedBy != nil && strings.TrimSpace(*inc.ResolvedBy) != "" {
			resolver = strings.TrimSpace(*inc.ResolvedBy)
		}
		byResolver[resolver]++
	}

	ranking := make([]ResolverCount, 0, len(byResolver))
	for resolver, n := range byResolver {
		ranking = append(ranking, ResolverCount{Resolver: resolver, ResolvedCount: n})
	}
	slices.SortFunc(ranking, func(a, b ResolverCount) int {
		if a.ResolvedCount != b.ResolvedCount {
			return b.ResolvedCount - a.ResolvedCount
		}
		return strings.Compare(a.Resolver, b.Resolver)
	})
	snap.TopResolvers = ranking[:min(len(ranking), topResolvers)]

	return snap
}
