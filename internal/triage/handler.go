package triage

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bissquit/ops-triage-hub/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for triage suggestions.
type Handler struct {
	triager   *Triager
	validator *validator.Validate
}

// NewHandler creates a new triage handler.
func NewHandler(triager *Triager) *Handler {
	return &Handler{
		triager:   triager,
		validator: validator.New(),
	}
}

// RegisterRoutes registers triage routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/triage", h.Triage)
}

// TriageRequest represents the request body for a triage suggestion.
type TriageRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=120"`
	Description string `json:"description" validate:"required,min=10,max=5000"`
}

// Triage handles POST /triage request.
func (h *Handler) Triage(w http.ResponseWriter, r *http.Request) {
	var req TriageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	suggestion := h.triager.Suggest(req.Title, req.Description)
	recordSuggestion(suggestion.SuggestedPriority)

	httputil.Success(w, http.StatusOK, suggestion)
}
