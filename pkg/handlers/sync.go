package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/models"
	"github.com/ekaya-inc/genbi-engine/pkg/services"
)

// SyncHandler handles sync job requests of a data source.
type SyncHandler struct {
	service services.SyncService
	logger  *zap.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(service services.SyncService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{service: service, logger: logger}
}

// RegisterRoutes registers the sync routes.
func (h *SyncHandler) RegisterRoutes(r chi.Router) {
	r.Post("/data-sources/{id}/sync", h.Start)
	r.Get("/data-sources/{id}/sync", h.List)
	r.Get("/data-sources/{id}/sync/{syncId}", h.Get)
	r.Post("/data-sources/{id}/sync/{syncId}/cancel", h.Cancel)
}

// Start handles POST /data-sources/{id}/sync. An empty body starts an
// incremental sync of every table.
func (h *SyncHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDataSourceID(w, r, h.logger)
	if !ok {
		return
	}

	var req models.SyncRequest
	if r.Body != nil {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", h.logger)
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", h.logger)
				return
			}
		}
	}

	job, err := h.service.Start(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, err, "Failed to start sync", h.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, job, h.logger)
}

// List handles GET /data-sources/{id}/sync
func (h *SyncHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDataSourceID(w, r, h.logger)
	if !ok {
		return
	}

	jobs, err := h.service.List(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to list sync jobs", h.logger)
		return
	}
	if jobs == nil {
		jobs = []models.DataSourceSync{}
	}
	writeJSON(w, http.StatusOK, jobs, h.logger)
}

// Get handles GET /data-sources/{id}/sync/{syncId}
func (h *SyncHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, syncID, ok := ParseDataSourceAndSyncIDs(w, r, h.logger)
	if !ok {
		return
	}

	job, err := h.service.Get(r.Context(), id, syncID)
	if err != nil {
		writeServiceError(w, err, "Failed to get sync job", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, job, h.logger)
}

// Cancel handles POST /data-sources/{id}/sync/{syncId}/cancel
func (h *SyncHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, syncID, ok := ParseDataSourceAndSyncIDs(w, r, h.logger)
	if !ok {
		return
	}

	job, err := h.service.Cancel(r.Context(), id, syncID)
	if err != nil {
		writeServiceError(w, err, "Failed to cancel sync job", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, job, h.logger)
}
