package incidents

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/statusbeacon/beacon/internal/domain"
	"github.com/statusbeacon/beacon/internal/pkg/httputil"
	"github.com/statusbeacon/beacon/internal/pkg/slug"
)

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

// RegisterRoutes registers authenticated read routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/incidents", h.ListIncidents)
	r.Get("/incidents/{id}", h.GetIncident)
}

// RegisterAdminRoutes registers write routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/incidents", h.CreateIncident)
	r.Patch("/incidents/{id}", h.UpdateIncident)
	r.Delete("/incidents/{id}", h.DeleteIncident)
	r.Post("/services/{id}/recompute", h.RecomputeServiceStatus)
}

// RegisterPublicRoutes registers unauthenticated status-page routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/public/{org_slug}/incidents", h.ListPublicIncidents)
}

// CreateIncidentRequest represents the request body for opening an incident.
type CreateIncidentRequest struct {
	ServiceID   string     `json:"service_id" validate:"required,uuid"`
	Title       string     `json:"title" validate:"required,min=1,max=255"`
	Description string     `json:"description" validate:"required"`
	ToState     string     `json:"to_state" validate:"required,oneof=operational degraded partial major maintenance"`
	StartedAt   *time.Time `json:"started_at"`
}

// UpdateIncidentRequest represents the request body for updating an
// incident. A to_state field, if sent, is not mapped: it is immutable
// after creation and silently dropped.
type UpdateIncidentRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
	Status      *string `json:"status" validate:"omitempty,oneof=investigating identified monitoring resolved"`
}

// IncidentResponse augments an incident with the state the service would
// enter if this incident resolved now.
type IncidentResponse struct {
	domain.Incident
	ResultingState *domain.ServiceStatus `json:"resulting_state,omitempty"`
}

// pathID extracts and validates the {id} path parameter. Malformed
// identifiers map to not found, same as lookups for rows that cannot
// exist, and never reach the database.
func pathID(w http.ResponseWriter, r *http.Request, notFound error) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httputil.Error(w, http.StatusNotFound, notFound.Error())
		return "", false
	}
	return id, true
}

var incidentErrorMappings = []httputil.ErrorMapping{
	{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
	{Error: ErrServiceNotFound, Status: http.StatusNotFound},
	{Error: ErrOrgNotFound, Status: http.StatusNotFound},
	{Error: ErrInvalidTransition, Status: http.StatusBadRequest},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
	{Error: ErrIncidentResolved, Status: http.StatusBadRequest},
}

// CreateIncident handles POST /incidents.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	auth, ok := httputil.GetAuthContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.Create(r.Context(), auth.OrgID, CreateInput{
		ServiceID:   req.ServiceID,
		Title:       req.Title,
		Description: req.Description,
		ToState:     domain.ServiceStatus(req.ToState),
		StartedAt:   req.StartedAt,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

// GetIncident handles GET /incidents/{id}.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	auth, ok := httputil.GetAuthContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := pathID(w, r, ErrIncidentNotFound)
	if !ok {
		return
	}

	incident, err := h.service.Get(r.Context(), auth.OrgID, id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	resulting, err := h.service.ResultingState(r.Context(), incident)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, IncidentResponse{Incident: *incident, ResultingState: resulting})
}

// ListIncidents handles GET /incidents.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	auth, ok := httputil.GetAuthContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	filter := Filter{Query: r.URL.Query().Get("q")}
	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.IncidentStatus(v)
		if !status.IsValid() {
			httputil.Error(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = &status
	}

	list, err := h.service.List(r.Context(), auth.OrgID, filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, list)
}

// UpdateIncident handles PATCH /incidents/{id}.
func (h *Handler) UpdateIncident(w http.ResponseWriter, r *http.Request) {
	auth, ok := httputil.GetAuthContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := pathID(w, r, ErrIncidentNotFound)
	if !ok {
		return
	}

	var req UpdateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := UpdateInput{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Status != nil {
		status := domain.IncidentStatus(*req.Status)
		input.Status = &status
	}

	incident, err := h.service.Update(r.Context(), auth.OrgID, id, input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// DeleteIncident handles DELETE /incidents/{id}.
func (h *Handler) DeleteIncident(w http.ResponseWriter, r *http.Request) {
	auth, ok := httputil.GetAuthContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := pathID(w, r, ErrIncidentNotFound)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), auth.OrgID, id); err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.JSON(w, http.StatusNoContent, nil)
}

// RecomputeServiceStatus handles POST /services/{id}/recompute.
func (h *Handler) RecomputeServiceStatus(w http.ResponseWriter, r *http.Request) {
	auth, ok := httputil.GetAuthContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := pathID(w, r, ErrServiceNotFound)
	if !ok {
		return
	}

	service, err := h.service.RecomputeServiceStatus(r.Context(), auth.OrgID, id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, service)
}

// ListPublicIncidents handles GET /public/{org_slug}/incidents. The
// slug is normalized so links with stray casing still resolve.
func (h *Handler) ListPublicIncidents(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPublic(r.Context(), slug.Make(chi.URLParam(r, "org_slug")))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, list)
}
