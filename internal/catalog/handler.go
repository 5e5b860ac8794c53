package catalog

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/statusbeacon/beacon/internal/domain"
	"github.com/statusbeacon/beacon/internal/pkg/httputil"
	"github.com/statusbeacon/beacon/internal/pkg/slug"
)

// Handler handles HTTP requests for the catalog module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers authenticated catalog routes. Reads are open
// to all members; writes require the admin role (applied by the caller).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/services", h.ListServices)
	r.Get("/services/{id}", h.GetService)
}

// RegisterAdminRoutes registers write routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/services", h.CreateService)
	r.Patch("/services/{id}", h.UpdateService)
	r.Delete("/services/{id}", h.DeleteService)
}

// RegisterPublicRoutes registers unauthenticated status-page routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/public/{org_slug}/services", h.ListPublicServices)
}

// CreateServiceRequest represents the request body for creating a service.
type CreateServiceRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

// UpdateServiceRequest represents the request body for updating a service.
// There is intentionally no status field: status is derived from incidents.
type UpdateServiceRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// servicePathID extracts and validates the {id} path parameter.
// Malformed identifiers map to not found and never reach the database.
func servicePathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httputil.Error(w, http.StatusNotFound, ErrServiceNotFound.Error())
		return "", false
	}
	return id, true
}

var serviceErrorMappings = []httputil.ErrorMapping{
	{Error: ErrServiceNotFound, Status: http.StatusNotFound},
	{Error: ErrOrgNotFound, Status: http.StatusNotFound},
	{Error: ErrServiceNameTaken, Status: http.StatusConflict},
	{Error: ErrServiceDeleted, Status: http.StatusConflict},
}

// CreateService handles POST /services.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	auth, ok := httputil.GetAuthContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	service, err := h.service.CreateService(r.Context(), auth.OrgID, CreateServiceInput{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    isActive,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, serviceErrorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, service)
}

// GetService handles GET /services/{id}.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	auth, ok := httputil.GetAuthContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := servicePathID(w, r)
	if !ok {
		return
	}

	service, err := h.service.GetService(r.Context(), auth.OrgID, id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, serviceErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, service)
}

// ListServices handles GET /services.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	auth, ok := httputil.GetAuthContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	filter := ServiceFilter{Query: r.URL.Query().Get("q")}
	if v := r.URL.Query().Get("is_active"); v != "" {
		active := v == "true"
		filter.IsActive = &active
	}

	services, err := h.service.ListServices(r.Context(), auth.OrgID, filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, serviceErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, services)
}

// UpdateService handles PATCH /services/{id}.
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	auth, ok := httputil.GetAuthContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := servicePathID(w, r)
	if !ok {
		return
	}

	var req UpdateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	service, err := h.service.UpdateService(r.Context(), auth.OrgID, id, UpdateServiceInput{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, serviceErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, service)
}

// DeleteService handles DELETE /services/{id} (soft delete).
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	auth, ok := httputil.GetAuthContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := servicePathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteService(r.Context(), auth.OrgID, id); err != nil {
		httputil.HandleError(r.Context(), w, err, serviceErrorMappings)
		return
	}

	httputil.JSON(w, http.StatusNoContent, nil)
}

// ListPublicServices handles GET /public/{org_slug}/services. The slug
// is normalized so links with stray casing still resolve.
func (h *Handler) ListPublicServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.ListPublicServices(r.Context(), slug.Make(chi.URLParam(r, "org_slug")))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, serviceErrorMappings)
		return
	}

	summaries := make([]domain.ServiceSummary, 0, len(services))
	for i := range services {
		summaries = append(summaries, services[i].Summary())
	}

	httputil.Success(w, http.StatusOK, summaries)
}
