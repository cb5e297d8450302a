package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(ErrorBody{
		StatusCode: statusCode,
		Error:      errorCode,
		Message:    message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeJSON writes data and logs an encoding failure.
func writeJSON(w http.ResponseWriter, statusCode int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, data); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeError writes an error response and logs an encoding failure.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeServiceError maps a service error to its HTTP status. Unclassified
// errors are logged and answered with a generic 500 carrying fallback.
func writeServiceError(w http.ResponseWriter, err error, fallback string, logger *zap.Logger) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", apperrors.Message(err, "Invalid request"), logger)
	case errors.Is(err, apperrors.ErrInvalidState):
		writeError(w, http.StatusBadRequest, "invalid_state", apperrors.Message(err, "Invalid state"), logger)
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", apperrors.Message(err, "Not found"), logger)
	case errors.Is(err, apperrors.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", apperrors.Message(err, "Conflict"), logger)
	default:
		logger.Error(fallback, zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", fallback, logger)
	}
}

// decodeJSON reads the request body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", logger)
		return false
	}
	return true
}
