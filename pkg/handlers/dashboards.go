package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/models"
	"github.com/ekaya-inc/genbi-engine/pkg/services"
)

// DashboardsHandler handles dashboard CRUD requests.
type DashboardsHandler struct {
	service services.DashboardService
	logger  *zap.Logger
}

// NewDashboardsHandler creates a new dashboards handler.
func NewDashboardsHandler(service services.DashboardService, logger *zap.Logger) *DashboardsHandler {
	return &DashboardsHandler{service: service, logger: logger}
}

// RegisterRoutes registers the dashboard routes.
func (h *DashboardsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboards", h.List)
	r.Post("/dashboards", h.Create)
	r.Get("/dashboards/{id}", h.Get)
	r.Put("/dashboards/{id}", h.Update)
	r.Delete("/dashboards/{id}", h.Delete)
}

// List handles GET /dashboards
func (h *DashboardsHandler) List(w http.ResponseWriter, r *http.Request) {
	dashboards, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to list dashboards", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(dashboards), h.logger)
}

// Create handles POST /dashboards
func (h *DashboardsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDashboardRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	req.CreatedBy = r.Header.Get(UserHeader)

	dashboard, err := h.service.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, "Failed to create dashboard", h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, dashboard, h.logger)
}

// Get handles GET /dashboards/{id}
func (h *DashboardsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDashboardID(w, r, h.logger)
	if !ok {
		return
	}
	dashboard, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get dashboard", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, dashboard, h.logger)
}

// Update handles PUT /dashboards/{id}. A widgets array replaces every widget.
func (h *DashboardsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDashboardID(w, r, h.logger)
	if !ok {
		return
	}
	var req models.UpdateDashboardRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	dashboard, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, err, "Failed to update dashboard", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, dashboard, h.logger)
}

// Delete handles DELETE /dashboards/{id}
func (h *DashboardsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDashboardID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, "Failed to delete dashboard", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, models.DeleteResponse{
		Message: "Dashboard deleted successfully",
		ID:      id,
	}, h.logger)
}
