package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/services"
)

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and headers.
const multipartOverhead = 1 << 20

// UploadsHandler accepts data file uploads and serves their metadata and previews.
type UploadsHandler struct {
	service services.UploadService
	maxSize int64
	logger  *zap.Logger
}

// NewUploadsHandler creates a new uploads handler. maxSize bounds the file in bytes.
func NewUploadsHandler(service services.UploadService, maxSize int64, logger *zap.Logger) *UploadsHandler {
	return &UploadsHandler{service: service, maxSize: maxSize, logger: logger}
}

// RegisterRoutes registers the upload routes.
func (h *UploadsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/data-sources/uploads", h.Upload)
	r.Get("/data-sources/uploads/{fileId}", h.Get)
	r.Get("/data-sources/uploads/{fileId}/preview", h.Preview)
}

// Upload handles POST /data-sources/uploads with a multipart "file" field.
func (h *UploadsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "validation_error",
				fmt.Sprintf("File exceeds the maximum size of %d MB", h.maxSize>>20), h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid multipart form", h.logger)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "No file uploaded", h.logger)
		return
	}
	defer file.Close()

	uploaded, err := h.service.Upload(r.Context(), &services.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeServiceError(w, err, "Failed to store upload", h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, uploaded, h.logger)
}

// Get handles GET /data-sources/uploads/{fileId}
func (h *UploadsHandler) Get(w http.ResponseWriter, r *http.Request) {
	uploaded, err := h.service.Get(r.Context(), r.PathValue("fileId"))
	if err != nil {
		writeServiceError(w, err, "Failed to get upload", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, uploaded, h.logger)
}

// Preview handles GET /data-sources/uploads/{fileId}/preview?rows=
func (h *UploadsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	rows, ok := queryInt(w, r, "rows", h.logger)
	if !ok {
		return
	}

	preview, err := h.service.Preview(r.Context(), r.PathValue("fileId"), rows)
	if err != nil {
		writeServiceError(w, err, "Failed to preview upload", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, preview, h.logger)
}
