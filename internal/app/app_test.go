package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bissquit/ops-triage-hub/api/openapi"
	"github.com/bissquit/ops-triage-hub/internal/config"
	"github.com/bissquit/ops-triage-hub/internal/domain"
	"github.com/bissquit/ops-triage-hub/internal/ops"
	"github.com/bissquit/ops-triage-hub/internal/testutil"
	"github.com/bissquit/ops-triage-hub/internal/triage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.Driver = config.DriverMemory
	cfg.Log.Level = "error"
	cfg.RateLimit.Enabled = false
	return cfg
}

func startApp(t *testing.T, cfg *config.Config) *testutil.Client {
	t.Helper()

	application, err := New(cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(application.Router())
	t.Cleanup(srv.Close)

	validator, err := testutil.LoadOpenAPIValidatorFromData(openapi.Spec)
	require.NoError(t, err)

	return testutil.NewClientWithValidator(t, srv.URL, validator)
}

func createIncident(t *testing.T, client *testutil.Client, body map[string]string) domain.Incident {
	t.Helper()

	resp, err := client.POST("/api/v1/incidents", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var inc domain.Incident
	testutil.DecodeData(t, resp, &inc)
	return inc
}

func patchIncident(t *testing.T, client *testutil.Client, id string, body map[string]string) *http.Response {
	t.Helper()

	resp, err := client.PATCH("/api/v1/incidents/"+id, body)
	require.NoError(t, err)
	return resp
}

func TestAPI_IncidentLifecycle(t *testing.T) {
	client := startApp(t, newTestConfig())

	inc := createIncident(t, client, map[string]string{
		"title":       "Checkout down",
		"description": "All EU checkout failing since 10:00",
		"priority":    "P1",
	})
	assert.Equal(t, domain.StatusOpen, inc.Status)
	assert.Equal(t, domain.PriorityP1, inc.Priority)
	assert.Nil(t, inc.ResolvedAt)

	resp := patchIncident(t, client, inc.ID, map[string]string{"status": "mitigated"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()

	resp = patchIncident(t, client, inc.ID, map[string]string{"status": "investigating"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = patchIncident(t, client, inc.ID, map[string]string{"status": "resolved", "resolved_by": "On-call"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	resp = patchIncident(t, client, inc.ID, map[string]string{
		"status":           "resolved",
		"resolved_by":      "On-call",
		"resolution_notes": "rolled back deploy",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var resolved domain.Incident
	testutil.DecodeData(t, resp, &resolved)
	assert.Equal(t, domain.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, "On-call", *resolved.ResolvedBy)

	resp = patchIncident(t, client, inc.ID, map[string]string{"status": "open"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err := client.GET("/api/v1/incidents/" + inc.ID + "/timeline")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var timeline []domain.TimelineEvent
	testutil.DecodeData(t, resp, &timeline)

	types := make([]domain.TimelineEventType, 0, len(timeline))
	for i, e := range timeline {
		types = append(types, e.Type)
		if i > 0 {
			assert.Greater(t, e.Seq, timeline[i-1].Seq)
		}
	}
	assert.Equal(t, []domain.TimelineEventType{
		domain.TimelineEventCreated,
		domain.TimelineEventStatusChanged,
		domain.TimelineEventStatusChanged,
		domain.TimelineEventResolved,
	}, types)

	resp, err = client.GET("/api/v1/ops/resolved-incidents?days=7")
	require.NoError(t, err)
	var resolvedList []domain.Incident
	testutil.DecodeData(t, resp, &resolvedList)
	require.Len(t, resolvedList, 1)
	assert.Equal(t, inc.ID, resolvedList[0].ID)

	resp, err = client.GET("/api/v1/ops/kpis?days=30")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var kpis ops.KPISnapshot
	testutil.DecodeData(t, resp, &kpis)
	assert.Equal(t, 30, kpis.WindowDays)
	assert.Equal(t, 1, kpis.ResolvedCount)
	assert.Equal(t, []ops.ResolverCount{{Resolver: "On-call", ResolvedCount: 1}}, kpis.TopResolvers)
	assert.NotNil(t, kpis.AvgMTTRMinutes)
}

func TestAPI_PatchNoteAndPriority(t *testing.T) {
	client := startApp(t, newTestConfig())

	inc := createIncident(t, client, map[string]string{
		"title":       "Webhook retries",
		"description": "Partner webhooks are retried several times",
	})
	assert.Equal(t, domain.PriorityP2, inc.Priority)

	resp := patchIncident(t, client, inc.ID, map[string]string{"priority": "p1", "note": "customer escalated"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated domain.Incident
	testutil.DecodeData(t, resp, &updated)
	assert.Equal(t, domain.PriorityP1, updated.Priority)
	assert.Equal(t, domain.StatusOpen, updated.Status)

	resp = patchIncident(t, client, inc.ID, map[string]string{"status": "open"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAPI_ListsAndAnalytics(t *testing.T) {
	client := startApp(t, newTestConfig())

	first := createIncident(t, client, map[string]string{
		"title":       "Search latency",
		"description": "p99 latency doubled for search",
		"priority":    "P2",
	})
	second := createIncident(t, client, map[string]string{
		"title":       "Login errors",
		"description": "Intermittent login failures reported",
		"priority":    "P1",
	})

	resp, err := client.GET("/api/v1/ops/active-incidents")
	require.NoError(t, err)
	var active []domain.Incident
	testutil.DecodeData(t, resp, &active)
	require.Len(t, active, 2)
	assert.Equal(t, second.ID, active[0].ID)
	assert.Equal(t, first.ID, active[1].ID)

	resp, err = client.GET("/api/v1/incidents?status=open&limit=1")
	require.NoError(t, err)
	var limited []domain.Incident
	testutil.DecodeData(t, resp, &limited)
	assert.Len(t, limited, 1)

	resp, err = client.GET("/api/v1/ops/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health ops.Health
	testutil.DecodeData(t, resp, &health)
	assert.Equal(t, ops.HealthGreen, health.Status)
	assert.Equal(t, 2, health.ActiveTotal)

	resp, err = client.GET("/api/v1/ops/recommendations?top_n=5")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report ops.RecommendationReport
	testutil.DecodeData(t, resp, &report)
	require.Len(t, report.Recommendations, 2)
	assert.Equal(t, second.ID, report.Recommendations[0].TargetIncidents[0].ID)

	resp, err = client.GET("/api/v1/ops/recommendations/summary")
	require.NoError(t, err)
	var summary ops.Summary
	testutil.DecodeData(t, resp, &summary)
	assert.Contains(t, summary.Summary, "Operational health is GREEN")

	resp, err = client.POST("/api/v1/triage", map[string]string{
		"title":       "Checkout down",
		"description": "All EU checkout failing since 10:00",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var suggestion triage.Suggestion
	testutil.DecodeData(t, resp, &suggestion)
	assert.Equal(t, domain.PriorityP0, suggestion.SuggestedPriority)
	assert.LessOrEqual(t, len(suggestion.NextSteps), triage.MaxNextSteps)
}

func TestAPI_Errors(t *testing.T) {
	client := startApp(t, newTestConfig())

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"unknown incident", http.MethodGet, "/api/v1/incidents/00000000-0000-0000-0000-000000000000", nil, http.StatusNotFound},
		{"unknown timeline", http.MethodGet, "/api/v1/incidents/missing/timeline", nil, http.StatusNotFound},
		{"patch unknown", http.MethodPatch, "/api/v1/incidents/missing", map[string]string{"status": "investigating"}, http.StatusNotFound},
		{"patch unknown with invalid priority", http.MethodPatch, "/api/v1/incidents/missing", map[string]string{"priority": "P9"}, http.StatusNotFound},
		{"patch unknown with invalid json", http.MethodPatch, "/api/v1/incidents/missing", "not an object", http.StatusNotFound},
		{"short title", http.MethodPost, "/api/v1/incidents", map[string]string{"title": "x", "description": "long enough text"}, http.StatusBadRequest},
		{"bad priority", http.MethodPost, "/api/v1/incidents", map[string]string{"title": "Disk full", "description": "long enough text", "priority": "P9"}, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/api/v1/incidents?status=closed", nil, http.StatusBadRequest},
		{"kpi window zero", http.MethodGet, "/api/v1/ops/kpis?days=0", nil, http.StatusBadRequest},
		{"top_n too large", http.MethodGet, "/api/v1/ops/recommendations?top_n=50", nil, http.StatusBadRequest},
		{"active limit too large", http.MethodGet, "/api/v1/ops/active-incidents?limit=501", nil, http.StatusBadRequest},
		{"triage short description", http.MethodPost, "/api/v1/triage", map[string]string{"title": "Checkout down", "description": "short"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				resp *http.Response
				err  error
			)
			c := client.WithoutValidation()
			switch tt.method {
			case http.MethodGet:
				resp, err = c.GET(tt.path)
			case http.MethodPost:
				resp, err = c.POST(tt.path, tt.body)
			case http.MethodPatch:
				resp, err = c.PATCH(tt.path, tt.body)
			}
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestAPI_PatchValidatesBodyOfExistingIncident(t *testing.T) {
	client := startApp(t, newTestConfig())

	inc := createIncident(t, client, map[string]string{
		"title":       "Disk pressure",
		"description": "Root volume on worker nodes above 90 percent",
	})

	resp, err := client.WithoutValidation().PATCH("/api/v1/incidents/"+inc.ID, map[string]string{"priority": "P9"})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_KPIsAcceptAnyPositiveWindow(t *testing.T) {
	client := startApp(t, newTestConfig())

	inc := createIncident(t, client, map[string]string{
		"title":       "Payments webhook",
		"description": "Webhook deliveries to the payment provider time out",
		"priority":    "P0",
	})
	resp := patchIncident(t, client, inc.ID, map[string]string{"status": "investigating"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
	resp = patchIncident(t, client, inc.ID, map[string]string{
		"status":           "resolved",
		"resolved_by":      "On-call",
		"resolution_notes": "rotated webhook secret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	kpis := func(days string) ops.KPISnapshot {
		t.Helper()
		resp, err := client.GET("/api/v1/ops/kpis?days=" + days)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var snap ops.KPISnapshot
		testutil.DecodeData(t, resp, &snap)
		return snap
	}

	ninety := kpis("90")
	assert.Equal(t, 1, ninety.ResolvedCount)
	assert.Equal(t, 1, ninety.P0ResolvedCount)

	for _, days := range []string{"3000000", "200000000", "2147483647"} {
		snap := kpis(days)
		assert.Equal(t, ninety.ResolvedCount, snap.ResolvedCount, days)
		assert.Equal(t, ninety.P0ResolvedCount, snap.P0ResolvedCount, days)
		assert.Equal(t, ninety.TopResolvers, snap.TopResolvers, days)
	}
}

func TestAPI_RateLimit(t *testing.T) {
	cfg := newTestConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.01, Burst: 1}
	client := startApp(t, cfg)

	body := map[string]string{"title": "Disk full", "description": "Disk usage at 100 percent"}

	resp, err := client.POST("/api/v1/incidents", body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.POST("/api/v1/incidents", body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.GET("/api/v1/incidents")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAPI_ServiceEndpoints(t *testing.T) {
	client := startApp(t, newTestConfig())

	for _, path := range []string{"/healthz", "/readyz", "/version", "/api/openapi.yaml"} {
		resp, err := client.GET(path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		_ = resp.Body.Close()
	}
}

func TestAPI_SeedIfEmpty(t *testing.T) {
	cfg := newTestConfig()
	cfg.Incidents.SeedIfEmpty = true
	client := startApp(t, cfg)

	resp, err := client.GET("/api/v1/ops/active-incidents")
	require.NoError(t, err)
	var active []domain.Incident
	testutil.DecodeData(t, resp, &active)
	assert.NotEmpty(t, active)
}
