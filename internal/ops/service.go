package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/ops-triage-hub/internal/domain"
)

// IncidentReader provides the snapshots analytics are computed from.
type IncidentReader interface {
	ActiveIncidents(ctx context.Context) ([]*domain.Incident, error)
	ResolvedSince(ctx context.Context, since time.Time) ([]*domain.Incident, error)
}

// Service computes analytics on every call; it keeps no state between calls.
type Service struct {
	reader IncidentReader
	policy Policy
	now    func() time.Time
}

// NewService creates a new analytics service.
func NewService(reader IncidentReader, policy Policy) *Service {
	return &Service{
		reader: reader,
		policy: policy,
		now:    time.Now,
	}
}

// Policy returns the thresholds in use.
func (s *Service) Policy() Policy {
	return s.policy
}

// Summary is the short form of the health score.
type Summary struct {
	GeneratedAt  time.Time    `json:"generated_at"`
	HealthStatus HealthStatus `json:"health_status"`
	Summary      string       `json:"summary"`
}

// Health scores the current active snapshot.
func (s *Service) Health(ctx context.Context) (*Health, error) {
	now := s.now().UTC()
	h, _, err := s.health(ctx, now)
	return h, err
}

// Recommendations returns the first topN ranked recommendations.
func (s *Service) Recommendations(ctx context.Context, topN int) (*RecommendationReport, error) {
	if topN < 1 || topN > s.policy.MaxRecommendations {
		return nil, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidTopN, s.policy.MaxRecommendations)
	}

	now := s.now().UTC()
	h, active, err := s.health(ctx, now)
	if err != nil {
		return nil, err
	}
	return BuildReport(now, active, h, s.policy, topN), nil
}

// Summary returns the deterministic health summary.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	h, err := s.Health(ctx)
	if err != nil {
		return nil, err
	}
	return &Summary{GeneratedAt: h.GeneratedAt, HealthStatus: h.Status, Summary: h.Summary}, nil
}

// KPIs aggregates incidents resolved in the trailing windowDays.
func (s *Service) KPIs(ctx context.Context, windowDays int) (*KPISnapshot, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("%w: days must be a positive integer, got %d", ErrInvalidWindow, windowDays)
	}

	now := s.now().UTC()
	resolved, err := s.reader.ResolvedSince(ctx, windowStart(now, windowDays))
	if err != nil {
		return nil, fmt.Errorf("load resolved incidents: %w", err)
	}
	return ComputeKPIs(now, windowDays, resolved, s.policy.TopResolvers), nil
}

func (s *Service) health(ctx context.Context, now time.Time) (*Health, []*domain.Incident, error) {
	active, err := s.reader.ActiveIncidents(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load active incidents: %w", err)
	}
	resolved, err := s.reader.ResolvedSince(ctx, windowStart(now, s.policy.MTTRWindowDays))
	if err != nil {
		return nil, nil, fmt.Errorf("load resolved incidents: %w", err)
	}

	h := ComputeHealth(now, active, resolved, s.policy)
	recordHealth(h)
	return h, active, nil
}
