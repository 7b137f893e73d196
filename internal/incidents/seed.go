package incidents

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/bissquit/ops-triage-hub/internal/domain"
	"github.com/bissquit/ops-triage-hub/internal/pkg/ctxlog"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedData []byte

type seedFile struct {
	Incidents []seedIncident `yaml:"incidents"`
}

type seedIncident struct {
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Priority    domain.Priority `yaml:"priority"`
	Age         time.Duration   `yaml:"age"`
}

func loadSeed() ([]seedIncident, error) {
	var f seedFile
	if err := yaml.Unmarshal(seedData, &f); err != nil {
		return nil, fmt.Errorf("parse seed data: %w", err)
	}
	for _, si := range f.Incidents {
		if si.Title == "" || !si.Priority.IsValid() || si.Age < 0 {
			return nil, fmt.Errorf("invalid seed incident %q", si.Title)
		}
	}
	return f.Incidents, nil
}

// SeedIfEmpty populates an empty store with open, backdated demo incidents.
// Returns the number of incidents created.
func (s *Service) SeedIfEmpty(ctx context.Context) (int, error) {
	count, err := s.repo.CountIncidents(ctx)
	if err != nil {
		return 0, fmt.Errorf("count incidents: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	seeds, err := loadSeed()
	if err != nil {
		return 0, err
	}

	now := s.timestamp()
	for _, si := range seeds {
		createdAt := now.Add(-si.Age)
		incident := &domain.Incident{
			ID:          uuid.New().String(),
			Title:       si.Title,
			Description: si.Description,
			Priority:    si.Priority,
			Status:      domain.StatusOpen,
			CreatedAt:   createdAt,
			UpdatedAt:   createdAt,
		}

		event := newTimelineEvent(incident.ID, domain.TimelineEventCreated, createdAt)
		event.NewValue = strPtr(fmt.Sprintf("%s %s", incident.Priority, incident.Status))

		if err := s.repo.CreateIncident(ctx, incident, event); err != nil {
			return 0, fmt.Errorf("seed incident %q: %w", si.Title, err)
		}
	}

	ctxlog.FromContext(ctx).Info("seeded empty incident store", "incidents", len(seeds))
	return len(seeds), nil
}
