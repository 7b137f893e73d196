// Package ops computes read-only operational analytics over incident snapshots:
// health scoring, ranked recommendations and resolution KPIs.
package ops

import (
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/ops-triage-hub/internal/domain"
)

// Errors returned for rejected analytics parameters.
var (
	ErrInvalidWindow = errors.New("invalid window")
	ErrInvalidTopN   = errors.New("invalid top_n")
)

// Policy holds the thresholds analytics are computed against.
// Water marks are compared with strict "exceeds".
type Policy struct {
	SLA                    map[domain.Priority]time.Duration
	BreachedHighWater      int
	ActiveMediumWater      int
	AgedHighWater          int
	MTTRWindowDays         int
	DefaultRecommendations int
	MaxRecommendations     int
	TopResolvers           int
	BreachListLimit        int
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		SLA: map[domain.Priority]time.Duration{
			domain.PriorityP0: 30 * time.Minute,
			domain.PriorityP1: 2 * time.Hour,
			domain.PriorityP2: 8 * time.Hour,
			domain.PriorityP3: 24 * time.Hour,
		},
		BreachedHighWater:      4,
		ActiveMediumWater:      10,
		AgedHighWater:          4,
		MTTRWindowDays:         7,
		DefaultRecommendations: 3,
		MaxRecommendations:     10,
		TopResolvers:           10,
		BreachListLimit:        100,
	}
}

// Validate checks the policy is usable.
func (p Policy) Validate() error {
	for _, prio := range domain.Priorities {
		if p.SLA[prio] <= 0 {
			return fmt.Errorf("sla for %s must be positive", prio)
		}
	}
	if p.MTTRWindowDays <= 0 {
		return fmt.Errorf("mttr_window_days must be positive")
	}
	if p.MaxRecommendations <= 0 || p.DefaultRecommendations <= 0 || p.DefaultRecommendations > p.MaxRecommendations {
		return fmt.Errorf("default_recommendations must be within 1..max_recommendations")
	}
	if p.TopResolvers <= 0 || p.BreachListLimit <= 0 {
		return fmt.Errorf("top_resolvers and breach_list_limit must be positive")
	}
	if p.BreachedHighWater < 0 || p.ActiveMediumWater < 0 || p.AgedHighWater < 0 {
		return fmt.Errorf("water marks must not be negative")
	}
	return nil
}

// EarliestWindowStart is the lower bound of every trailing window. Windows
// reaching further back are clamped to it so store queries only ever see
// timestamps they can represent.
var EarliestWindowStart = time.Unix(0, 0).UTC()

// windowStart returns now - days, clamped to EarliestWindowStart.
func windowStart(now time.Time, days int) time.Time {
	start := now.AddDate(0, 0, -days)
	if start.Before(EarliestWindowStart) {
		return EarliestWindowStart
	}
	return start
}

// slaFor returns the SLA for a priority. Unknown priorities get the loosest one.
func (p Policy) slaFor(prio domain.Priority) time.Duration {
	if d, ok := p.SLA[prio]; ok {
		return d
	}
	return p.SLA[domain.PriorityP3]
}
