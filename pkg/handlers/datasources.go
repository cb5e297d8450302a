package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/models"
	"github.com/ekaya-inc/genbi-engine/pkg/services"
)

// DataSourcesHandler handles data source HTTP requests.
type DataSourcesHandler struct {
	service services.DataSourceService
	tester  services.ConnectionTestService
	logger  *zap.Logger
}

// NewDataSourcesHandler creates a new data sources handler.
func NewDataSourcesHandler(service services.DataSourceService, tester services.ConnectionTestService, logger *zap.Logger) *DataSourcesHandler {
	return &DataSourcesHandler{
		service: service,
		tester:  tester,
		logger:  logger,
	}
}

// RegisterRoutes registers the data source routes. Static segments such as
// /types are matched before the {id} wildcard.
func (h *DataSourcesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/data-sources", h.List)
	r.Get("/data-sources/types", h.ListTypes)
	r.Post("/data-sources", h.Create)
	r.Post("/data-sources/test-connection", h.TestConnection)
	r.Get("/data-sources/{id}", h.Get)
	r.Put("/data-sources/{id}", h.Update)
	r.Delete("/data-sources/{id}", h.Delete)
}

// List handles GET /data-sources
func (h *DataSourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, ok := queryInt(w, r, "page", h.logger)
	if !ok {
		return
	}
	pageSize, ok := queryInt(w, r, "pageSize", h.logger)
	if !ok {
		return
	}

	filter := models.DataSourceFilter{
		Search:    q.Get("search"),
		Status:    models.DataSourceStatus(q.Get("status")),
		Type:      models.DataSourceType(q.Get("type")),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
		Page:      page,
		PageSize:  pageSize,
	}

	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err, "Failed to list data sources", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, result, h.logger)
}

// ListTypes handles GET /data-sources/types
func (h *DataSourcesHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ListTypes(), h.logger)
}

// Create handles POST /data-sources
func (h *DataSourcesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDataSourceRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	req.CreatedBy = r.Header.Get(UserHeader)

	ds, err := h.service.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, "Failed to create data source", h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, ds, h.logger)
}

// TestConnection handles POST /data-sources/test-connection.
// Connection failures are reported in the body with status 200.
func (h *DataSourcesHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req models.ConnectionTestRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	writeJSON(w, http.StatusOK, h.tester.TestConnection(r.Context(), &req), h.logger)
}

// Get handles GET /data-sources/{id}
func (h *DataSourcesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDataSourceID(w, r, h.logger)
	if !ok {
		return
	}

	ds, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get data source", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, ds, h.logger)
}

// Update handles PUT /data-sources/{id}
func (h *DataSourcesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDataSourceID(w, r, h.logger)
	if !ok {
		return
	}

	var req models.UpdateDataSourceRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	ds, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, err, "Failed to update data source", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, ds, h.logger)
}

// Delete handles DELETE /data-sources/{id}
func (h *DataSourcesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDataSourceID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, "Failed to delete data source", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, models.DeleteResponse{
		Message: "Data source deleted successfully",
		ID:      id,
	}, h.logger)
}
