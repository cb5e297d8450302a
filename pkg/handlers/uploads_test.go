package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

func multipartRequest(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/data-sources/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadsHandler_Upload(t *testing.T) {
	svc := &mockUploadService{file: &models.UploadedFile{FileID: "file-0123456789abcdef", Name: "sales.csv", Type: models.FileTypeCSV}}
	handler := NewUploadsHandler(svc, 1<<20, zap.NewNop())

	req := multipartRequest(t, "file", "sales.csv", "id,total\n1,9.5\n")
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	if svc.lastInput == nil || svc.lastInput.Filename != "sales.csv" {
		t.Fatalf("unexpected input: %+v", svc.lastInput)
	}
	if svc.lastBody != "id,total\n1,9.5\n" {
		t.Errorf("body = %q", svc.lastBody)
	}
	if svc.lastInput.Size != int64(len(svc.lastBody)) {
		t.Errorf("size = %d, want %d", svc.lastInput.Size, len(svc.lastBody))
	}
}

func TestUploadsHandler_Upload_Rejects(t *testing.T) {
	tests := []struct {
		name        string
		req         func(t *testing.T) *http.Request
		svcErr      error
		wantMessage string
	}{
		{
			name:        "missing file field",
			req:         func(t *testing.T) *http.Request { return multipartRequest(t, "other", "a.csv", "x") },
			wantMessage: "No file uploaded",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/v1/data-sources/uploads", strings.NewReader("plain"))
			},
			wantMessage: "Invalid multipart form",
		},
		{
			name: "body over limit",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "file", "big.csv", strings.Repeat("a", 3<<20))
			},
			wantMessage: "File exceeds the maximum size of 1 MB",
		},
		{
			name:        "service rejects type",
			req:         func(t *testing.T) *http.Request { return multipartRequest(t, "file", "notes.txt", "hello") },
			svcErr:      apperrors.Validationf("Unsupported file type"),
			wantMessage: "Unsupported file type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewUploadsHandler(&mockUploadService{err: tt.svcErr}, 1<<20, zap.NewNop())
			rec := httptest.NewRecorder()

			handler.Upload(rec, tt.req(t))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
			var body ErrorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", body.Message, tt.wantMessage)
			}
		})
	}
}

func TestUploadsHandler_Preview(t *testing.T) {
	svc := &mockUploadService{preview: &models.FilePreview{FileID: "file-1", TotalRows: 2}}
	handler := NewUploadsHandler(svc, 1<<20, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/data-sources/uploads/file-1/preview?rows=5", nil)
	req.SetPathValue("fileId", "file-1")
	rec := httptest.NewRecorder()

	handler.Preview(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if svc.lastFileID != "file-1" || svc.lastRows != 5 {
		t.Errorf("got fileID %q rows %d", svc.lastFileID, svc.lastRows)
	}
}

func TestUploadsHandler_Get_NotFound(t *testing.T) {
	svc := &mockUploadService{err: apperrors.NotFoundf("File not found")}
	handler := NewUploadsHandler(svc, 1<<20, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/data-sources/uploads/file-x", nil)
	req.SetPathValue("fileId", "file-x")
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}
