package ops

import (
	"math"
	"net/http"

	"github.com/bissquit/ops-triage-hub/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// DefaultKPIWindowDays is used when the days query parameter is absent.
const DefaultKPIWindowDays = 7

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrInvalidWindow, Status: http.StatusBadRequest},
	{Error: ErrInvalidTopN, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for operational analytics.
type Handler struct {
	service *Service
}

// NewHandler creates a new ops handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers analytics routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ops/health", h.GetHealth)
	r.Get("/ops/recommendations", h.GetRecommendations)
	r.Get("/ops/recommendations/summary", h.GetSummary)
	r.Get("/ops/kpis", h.GetKPIs)
}

// GetHealth handles GET /ops/health request.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.service.Health(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, health)
}

// GetRecommendations handles GET /ops/recommendations request.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	policy := h.service.Policy()
	topN, err := httputil.QueryInt(r, "top_n", policy.DefaultRecommendations, 1, policy.MaxRecommendations)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.service.Recommendations(r.Context(), topN)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, report)
}

// GetSummary handles GET /ops/recommendations/summary request.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, summary)
}

// GetKPIs handles GET /ops/kpis request.
func (h *Handler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	days, err := httputil.QueryInt(r, "days", DefaultKPIWindowDays, 1, math.MaxInt32)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	kpis, err := h.service.KPIs(r.Context(), days)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, kpis)
}
