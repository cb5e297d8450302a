package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserHeader optionally names the caller; it is recorded as createdBy.
const UserHeader = "X-User-ID"

// ParseDataSourceID extracts and validates the data source ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseDataSourceID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_data_source_id", "Invalid data source ID format", logger)
}

// ParseSyncID extracts and validates the sync job ID from the request path.
// Expects path parameter: syncId
func ParseSyncID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "syncId", "invalid_sync_id", "Invalid sync ID format", logger)
}

// ParseQueryID extracts and validates the query ID from the request path.
// Expects path parameter: id
func ParseQueryID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_query_id", "Invalid query ID format", logger)
}

// ParseDashboardID extracts and validates the dashboard ID from the request path.
// Expects path parameter: id
func ParseDashboardID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_dashboard_id", "Invalid dashboard ID format", logger)
}

// ParseDataSourceAndSyncIDs extracts and validates both data source and sync IDs.
// Expects path parameters: id, syncId
func ParseDataSourceAndSyncIDs(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, uuid.UUID, bool) {
	dataSourceID, ok := ParseDataSourceID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	syncID, ok := ParseSyncID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	return dataSourceID, syncID, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorCode, errorMessage, logger)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter. A missing value
// yields 0; a malformed one writes a 400 and returns false.
func queryInt(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", name+" must be an integer", logger)
		return 0, false
	}
	return n, true
}
