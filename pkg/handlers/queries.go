package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/models"
	"github.com/ekaya-inc/genbi-engine/pkg/services"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// QueriesHandler handles query execution and history requests.
type QueriesHandler struct {
	service services.QueryService
	logger  *zap.Logger
}

// NewQueriesHandler creates a new queries handler.
func NewQueriesHandler(service services.QueryService, logger *zap.Logger) *QueriesHandler {
	return &QueriesHandler{service: service, logger: logger}
}

// RegisterRoutes registers the query routes.
func (h *QueriesHandler) RegisterRoutes(r chi.Router) {
	r.Post("/queries/execute", h.Execute)
	r.Get("/queries/recent", h.Recent)
	r.Get("/queries/popular", h.Popular)
	r.Get("/queries/{id}", h.Get)
	r.Get("/queries/{id}/results", h.Results)
	r.Get("/queries/{id}/status", h.Status)
	r.Post("/queries/{id}/save", h.Save)
	r.Post("/queries/{id}/cancel", h.Cancel)
}

// Execute handles POST /queries/execute. The query runs in the background;
// clients poll its status.
func (h *QueriesHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req models.ExecuteQueryRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	req.CreatedBy = r.Header.Get(UserHeader)

	query, err := h.service.Execute(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, "Failed to execute query", h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, query, h.logger)
}

// Recent handles GET /queries/recent?limit=
func (h *QueriesHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}
	queries, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err, "Failed to list recent queries", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(queries), h.logger)
}

// Popular handles GET /queries/popular?limit=
func (h *QueriesHandler) Popular(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}
	queries, err := h.service.Popular(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err, "Failed to list popular queries", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(queries), h.logger)
}

// Get handles GET /queries/{id}
func (h *QueriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseQueryID(w, r, h.logger)
	if !ok {
		return
	}
	query, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get query", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, query, h.logger)
}

// Results handles GET /queries/{id}/results
func (h *QueriesHandler) Results(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseQueryID(w, r, h.logger)
	if !ok {
		return
	}
	result, err := h.service.GetResults(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get query results", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, result, h.logger)
}

// Status handles GET /queries/{id}/status
func (h *QueriesHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseQueryID(w, r, h.logger)
	if !ok {
		return
	}
	status, err := h.service.GetStatus(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get query status", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, status, h.logger)
}

// Save handles POST /queries/{id}/save
func (h *QueriesHandler) Save(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseQueryID(w, r, h.logger)
	if !ok {
		return
	}
	var req models.SaveQueryRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	query, err := h.service.Save(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, err, "Failed to save query", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, query, h.logger)
}

// Cancel handles POST /queries/{id}/cancel
func (h *QueriesHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseQueryID(w, r, h.logger)
	if !ok {
		return
	}
	query, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to cancel query", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, query, h.logger)
}

func (h *QueriesHandler) parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit, ok := queryInt(w, r, "limit", h.logger)
	if !ok {
		return 0, false
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return min(limit, maxListLimit), true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
