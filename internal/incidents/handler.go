package incidents

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bissquit/ops-triage-hub/internal/domain"
	"github.com/bissquit/ops-triage-hub/internal/pkg/ctxlog"
	"github.com/bissquit/ops-triage-hub/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Listing limits.
const (
	DefaultListLimit    = 50
	MaxListLimit        = 200
	DefaultActiveLimit  = 200
	MaxActiveLimit      = 500
	DefaultResolvedDays = 7
	MaxResolvedDays     = 3650
	DefaultPriority     = domain.PriorityP2
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
	{Error: ErrInvalidTransition, Status: http.StatusConflict},
	{Error: ErrValidation, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the incidents module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers incident CRUD and timeline routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/incidents", func(r chi.Router) {
		r.Get("/", h.ListIncidents)
		r.Post("/", h.CreateIncident)
		r.Get("/{id}", h.GetIncident)
		r.Patch("/{id}", h.PatchIncident)
		r.Get("/{id}/timeline", h.GetTimeline)
	})
}

// RegisterOpsRoutes registers the operational listing routes.
func (h *Handler) RegisterOpsRoutes(r chi.Router) {
	r.Get("/ops/active-incidents", h.ListActive)
	r.Get("/ops/resolved-incidents", h.ListResolved)
}

// CreateIncidentRequest represents the request body for creating an incident.
type CreateIncidentRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=120"`
	Description string `json:"description" validate:"required,min=10,max=5000"`
	Priority    string `json:"priority" validate:"omitempty,oneof=P0 P1 P2 P3"`
}

// ToInput converts the request to service input.
func (r *CreateIncidentRequest) ToInput() CreateIncidentInput {
	priority := domain.Priority(r.Priority)
	if priority == "" {
		priority = DefaultPriority
	}
	return CreateIncidentInput{
		Title:       r.Title,
		Description: r.Description,
		Priority:    priority,
	}
}

// PatchIncidentRequest represents the request body for a lifecycle change.
type PatchIncidentRequest struct {
	Status          string  `json:"status" validate:"omitempty,oneof=open investigating mitigated resolved"`
	Priority        *string `json:"priority" validate:"omitempty,oneof=P0 P1 P2 P3"`
	Note            *string `json:"note" validate:"omitempty,max=5000"`
	ResolvedBy      *string `json:"resolved_by" validate:"omitempty,max=120"`
	ResolutionNotes *string `json:"resolution_notes" validate:"omitempty,max=5000"`
}

// ToInput converts the request to service input.
func (r *PatchIncidentRequest) ToInput(id string) TransitionInput {
	input := TransitionInput{
		IncidentID:      id,
		Status:          domain.Status(r.Status),
		Note:            r.Note,
		ResolvedBy:      r.ResolvedBy,
		ResolutionNotes: r.ResolutionNotes,
	}
	if r.Priority != nil {
		p := domain.Priority(*r.Priority)
		input.Priority = &p
	}
	return input
}

// normalize folds case-insensitive enum input before validation.
func (r *PatchIncidentRequest) normalize() {
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	if r.Priority != nil {
		p := strings.ToUpper(strings.TrimSpace(*r.Priority))
		r.Priority = &p
	}
}

// CreateIncident handles POST /incidents request.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Priority = strings.ToUpper(strings.TrimSpace(req.Priority))

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.CreateIncident(r.Context(), req.ToInput())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

// GetIncident handles GET /incidents/{id} request.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.service.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// PatchIncident handles PATCH /incidents/{id} request.
// The incident must exist before the body is looked at, so an unknown id is
// always 404.
func (h *Handler) PatchIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := ctxlog.With(r.Context(), "incident_id", id)

	if _, err := h.service.GetIncident(ctx, id); err != nil {
		httputil.HandleError(ctx, w, err, errorMappings)
		return
	}

	var req PatchIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.normalize()

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.TransitionIncident(ctx, req.ToInput(id))
	if err != nil {
		httputil.HandleError(ctx, w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// GetTimeline handles GET /incidents/{id}/timeline request.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.GetTimeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, events)
}

// ListIncidents handles GET /incidents request.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", DefaultListLimit, 1, MaxListLimit)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	input := ListInput{Limit: limit}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			httputil.Error(w, http.StatusBadRequest, "invalid status")
			return
		}
		input.Status = &status

		if status == domain.StatusResolved {
			days, err := httputil.QueryInt(r, "days", DefaultResolvedDays, 1, MaxResolvedDays)
			if err != nil {
				httputil.Error(w, http.StatusBadRequest, err.Error())
				return
			}
			input.Days = days
		}
	}

	incidents, err := h.service.ListIncidents(r.Context(), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incidents)
}

// ListActive handles GET /ops/active-incidents request.
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", DefaultActiveLimit, 1, MaxActiveLimit)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	incidents, err := h.service.ListActive(r.Context(), limit)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incidents)
}

// ListResolved handles GET /ops/resolved-incidents request.
func (h *Handler) ListResolved(w http.ResponseWriter, r *http.Request) {
	days, err := httputil.QueryInt(r, "days", DefaultResolvedDays, 1, MaxResolvedDays)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := httputil.QueryInt(r, "limit", DefaultListLimit, 1, MaxListLimit)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	incidents, err := h.service.ListResolved(r.Context(), days, limit)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incidents)
}
