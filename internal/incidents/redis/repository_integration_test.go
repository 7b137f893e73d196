//go:build integration

package redis

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/bissquit/ops-triage-hub/internal/domain"
	"github.com/bissquit/ops-triage-hub/internal/incidents"
	"github.com/bissquit/ops-triage-hub/internal/incidents/repotest"
	redisutil "github.com/bissquit/ops-triage-hub/internal/pkg/redis"
	"github.com/bissquit/ops-triage-hub/internal/testutil"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClient *goredis.Client

func TestMain(m *testing.M) {
	os.Exit(runMain(m))
}

func runMain(m *testing.M) int {
	ctx := context.Background()

	container, err := testutil.NewRedisContainer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start redis: %v\n", err)
		return 1
	}
	defer func() { _ = container.Terminate(ctx) }()

	testClient, err = redisutil.Connect(ctx, redisutil.Config{
		Addr:            container.Addr,
		ConnectAttempts: 3,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		return 1
	}
	defer func() { _ = testClient.Close() }()

	return m.Run()
}

// emptyRepository isolates every subtest under its own key prefix.
func emptyRepository(t *testing.T) incidents.Repository {
	t.Helper()
	return NewRepository(testClient, "test-"+uuid.NewString())
}

func TestRepository_Contract(t *testing.T) {
	repotest.Run(t, emptyRepository)
}

func TestRepository_LifecycleThroughService(t *testing.T) {
	repo := emptyRepository(t)
	svc := incidents.NewService(repo, nil, incidents.Config{ResolverRoles: []string{"On-call"}})
	ctx := context.Background()

	inc, err := svc.CreateIncident(ctx, incidents.CreateIncidentInput{
		Title:       "Payment webhook failures",
		Description: "Provider webhooks rejected with 401",
		Priority:    domain.PriorityP1,
	})
	require.NoError(t, err)

	_, err = svc.TransitionIncident(ctx, incidents.TransitionInput{IncidentID: inc.ID, Status: domain.StatusInvestigating})
	require.NoError(t, err)

	by, notes := "On-call", "rotated webhook secret"
	resolved, err := svc.TransitionIncident(ctx, incidents.TransitionInput{
		IncidentID:      inc.ID,
		Status:          domain.StatusResolved,
		ResolvedBy:      &by,
		ResolutionNotes: &notes,
	})
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)

	active, err := svc.ActiveIncidents(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	recent, err := svc.ResolvedSince(ctx, resolved.ResolvedAt.Add(-1))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, inc.ID, recent[0].ID)

	events, err := svc.GetTimeline(ctx, inc.ID)
	require.NoError(t, err)
	types := make([]domain.TimelineEventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []domain.TimelineEventType{
		domain.TimelineEventCreated,
		domain.TimelineEventStatusChanged,
		domain.TimelineEventStatusChanged,
		domain.TimelineEventResolved,
	}, types)
}
