package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

func newDataSourcesHandler(svc *mockDataSourceService, tester *mockConnectionTester) *DataSourcesHandler {
	if tester == nil {
		tester = &mockConnectionTester{}
	}
	return NewDataSourcesHandler(svc, tester, zap.NewNop())
}

func TestDataSourcesHandler_List_PassesFilter(t *testing.T) {
	svc := &mockDataSourceService{}
	handler := newDataSourcesHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/data-sources?search=rav&status=connected&type=mysql&sortBy=name&sortOrder=asc&page=2&pageSize=5", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	want := models.DataSourceFilter{
		Search:    "rav",
		Status:    models.DataSourceStatusConnected,
		Type:      models.DataSourceTypeMySQL,
		SortBy:    "name",
		SortOrder: "asc",
		Page:      2,
		PageSize:  5,
	}
	if svc.lastFilter != want {
		t.Errorf("filter = %+v, want %+v", svc.lastFilter, want)
	}

	var page models.Page[*models.DataSource]
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if page.Items == nil {
		t.Error("expected an empty items array, got null")
	}
}

func TestDataSourcesHandler_List_BadPage(t *testing.T) {
	handler := newDataSourcesHandler(&mockDataSourceService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/data-sources?page=two", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestDataSourcesHandler_List_ValidationError(t *testing.T) {
	svc := &mockDataSourceService{err: apperrors.Validationf("Invalid search filter")}
	handler := newDataSourcesHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/data-sources?search=x", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	var body ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Message != "Invalid search filter" {
		t.Errorf("message = %q", body.Message)
	}
}

func TestDataSourcesHandler_Create(t *testing.T) {
	ds := &models.DataSource{ID: uuid.New(), Name: "Warehouse", Status: models.DataSourceStatusConnecting}
	svc := &mockDataSourceService{dataSource: ds}
	handler := newDataSourcesHandler(svc, nil)

	body := `{"name":"Warehouse","type":"postgresql","connectionDetails":{"host":"db","database":"app","username":"u"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/data-sources", bytes.NewBufferString(body))
	req.Header.Set(UserHeader, "alice")
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	if svc.lastCreate == nil {
		t.Fatal("expected Create to be called")
	}
	if svc.lastCreate.Type != models.DataSourceTypePostgreSQL {
		t.Errorf("type = %q", svc.lastCreate.Type)
	}
	if svc.lastCreate.CreatedBy != "alice" {
		t.Errorf("createdBy = %q, want alice", svc.lastCreate.CreatedBy)
	}
	if svc.lastCreate.ConnectionDetails["host"] != "db" {
		t.Errorf("connection details not decoded: %v", svc.lastCreate.ConnectionDetails)
	}

	var got models.DataSource
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != ds.ID || got.Status != models.DataSourceStatusConnecting {
		t.Errorf("unexpected body: %+v", got)
	}
}

func TestDataSourcesHandler_Create_InvalidBody(t *testing.T) {
	svc := &mockDataSourceService{}
	handler := newDataSourcesHandler(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/data-sources", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if svc.lastCreate != nil {
		t.Error("service should not be called for an invalid body")
	}
}

func TestDataSourcesHandler_TestConnection_FailureIs200(t *testing.T) {
	tester := &mockConnectionTester{result: &models.ConnectionTestResult{
		Success: false,
		Message: "Connection failed",
		Error:   &models.ConnectionTestError{Code: models.ConnectionErrorUnsupported, Message: "Unsupported data source type: oracle"},
	}}
	handler := newDataSourcesHandler(&mockDataSourceService{}, tester)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/data-sources/test-connection", bytes.NewBufferString(`{"type":"oracle"}`))
	rec := httptest.NewRecorder()

	handler.TestConnection(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var got models.ConnectionTestResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Success || got.Error == nil || got.Error.Code != models.ConnectionErrorUnsupported {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestDataSourcesHandler_Get(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		pathValue  string
		svc        *mockDataSourceService
		wantStatus int
	}{
		{
			name:       "found",
			pathValue:  id.String(),
			svc:        &mockDataSourceService{dataSource: &models.DataSource{ID: id, Name: "A"}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "not found",
			pathValue:  id.String(),
			svc:        &mockDataSourceService{err: apperrors.NotFoundf("Data source not found")},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "malformed id",
			pathValue:  "abc",
			svc:        &mockDataSourceService{},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newDataSourcesHandler(tt.svc, nil)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/data-sources/"+tt.pathValue, nil)
			req.SetPathValue("id", tt.pathValue)
			rec := httptest.NewRecorder()

			handler.Get(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestDataSourcesHandler_Update(t *testing.T) {
	id := uuid.New()
	svc := &mockDataSourceService{dataSource: &models.DataSource{ID: id, Name: "Renamed"}}
	handler := newDataSourcesHandler(svc, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/data-sources/"+id.String(), bytes.NewBufferString(`{"name":"Renamed"}`))
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()

	handler.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if svc.lastUpdate == nil || svc.lastUpdate.Name == nil || *svc.lastUpdate.Name != "Renamed" {
		t.Errorf("update request not passed through: %+v", svc.lastUpdate)
	}
}

func TestDataSourcesHandler_Delete(t *testing.T) {
	id := uuid.New()
	svc := &mockDataSourceService{}
	handler := newDataSourcesHandler(svc, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/data-sources/"+id.String(), nil)
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if svc.deletedID != id {
		t.Errorf("deleted %v, want %v", svc.deletedID, id)
	}
	var resp models.DeleteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != id || resp.Message == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestDataSourcesHandler_ListTypes(t *testing.T) {
	svc := &mockDataSourceService{types: []models.DataSourceTypeInfo{
		{Type: models.DataSourceTypePostgreSQL, DisplayName: "PostgreSQL"},
		{Type: models.DataSourceTypeCSV, DisplayName: "CSV"},
	}}
	handler := newDataSourcesHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/data-sources/types", nil)
	rec := httptest.NewRecorder()

	handler.ListTypes(rec, req)

	var got []models.DataSourceTypeInfo
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 types, got %d", len(got))
	}
}
