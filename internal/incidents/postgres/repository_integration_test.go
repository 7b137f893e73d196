//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/bissquit/ops-triage-hub/internal/domain"
	"github.com/bissquit/ops-triage-hub/internal/incidents"
	"github.com/bissquit/ops-triage-hub/internal/incidents/repotest"
	pgutil "github.com/bissquit/ops-triage-hub/internal/pkg/postgres"
	"github.com/bissquit/ops-triage-hub/internal/testutil"
	"github.com/bissquit/ops-triage-hub/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(runMain(m))
}

func runMain(m *testing.M) int {
	ctx := context.Background()

	container, err := testutil.NewPostgresContainer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres: %v\n", err)
		return 1
	}
	defer func() { _ = container.Terminate(ctx) }()

	if err := pgutil.Migrate(container.ConnectionString, migrations.FS); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		return 1
	}

	testDB, err = pgutil.Connect(ctx, pgutil.Config{
		URL:             container.ConnectionString,
		MaxOpenConns:    5,
		MaxIdleConns:    1,
		ConnectAttempts: 3,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		return 1
	}
	defer testDB.Close()

	return m.Run()
}

func emptyRepository(t *testing.T) incidents.Repository {
	t.Helper()
	_, err := testDB.Exec(context.Background(), "TRUNCATE incident_timeline, incidents")
	require.NoError(t, err)
	return NewRepository(testDB)
}

func TestRepository_Contract(t *testing.T) {
	repotest.Run(t, emptyRepository)
}

func TestRepository_TimelineIsAppendOnly(t *testing.T) {
	repo := emptyRepository(t)
	svc := incidents.NewService(repo, nil, incidents.Config{})
	ctx := context.Background()

	inc, err := svc.CreateIncident(ctx, incidents.CreateIncidentInput{
		Title:       "Queue lag",
		Description: "Consumer lag above threshold",
		Priority:    domain.PriorityP2,
	})
	require.NoError(t, err)

	_, err = testDB.Exec(ctx, "UPDATE incident_timeline SET note = 'edited' WHERE incident_id = $1", inc.ID)
	assert.Error(t, err)

	_, err = testDB.Exec(ctx, "DELETE FROM incident_timeline WHERE incident_id = $1", inc.ID)
	assert.Error(t, err)

	events, err := repo.ListTimeline(ctx, inc.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRepository_ResolutionFieldsAreAllOrNothing(t *testing.T) {
	repo := emptyRepository(t)
	svc := incidents.NewService(repo, nil, incidents.Config{})
	ctx := context.Background()

	inc, err := svc.CreateIncident(ctx, incidents.CreateIncidentInput{
		Title:       "Disk pressure",
		Description: "Node disk usage above 90 percent",
		Priority:    domain.PriorityP3,
	})
	require.NoError(t, err)

	_, err = testDB.Exec(ctx, "UPDATE incidents SET resolved_by = 'On-call' WHERE id = $1", inc.ID)
	assert.Error(t, err)

	_, err = testDB.Exec(ctx, "UPDATE incidents SET status = 'resolved' WHERE id = $1", inc.ID)
	assert.Error(t, err)
}

func TestRepository_FailedUpdateLeavesNoEvents(t *testing.T) {
	repo := emptyRepository(t)
	svc := incidents.NewService(repo, nil, incidents.Config{})
	ctx := context.Background()

	inc, err := svc.CreateIncident(ctx, incidents.CreateIncidentInput{
		Title:       "Cache misses",
		Description: "Hit ratio dropped below 50 percent",
		Priority:    domain.PriorityP2,
	})
	require.NoError(t, err)

	// A resolved row without resolution fields violates the table constraint,
	// so the whole transaction must roll back.
	broken := inc.Clone()
	broken.Status = domain.StatusResolved
	note := "should not persist"
	err = repo.UpdateIncident(ctx, broken, domain.StatusOpen, []*domain.TimelineEvent{{
		ID:         "6f1c7a2e-8a44-4c8e-9d55-0b1f9a8b1c01",
		IncidentID: inc.ID,
		Type:       domain.TimelineEventNoteAdded,
		Note:       &note,
		CreatedAt:  inc.CreatedAt,
	}})
	require.Error(t, err)

	got, err := repo.GetIncident(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, got.Status)

	events, err := repo.ListTimeline(ctx, inc.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
