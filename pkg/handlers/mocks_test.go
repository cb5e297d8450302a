package handlers

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/ekaya-inc/genbi-engine/pkg/models"
	"github.com/ekaya-inc/genbi-engine/pkg/services"
	"github.com/ekaya-inc/genbi-engine/pkg/services/workqueue"
)

// mockDataSourceService returns the configured values and records the last request.
type mockDataSourceService struct {
	dataSource *models.DataSource
	page       *models.Page[*models.DataSource]
	types      []models.DataSourceTypeInfo
	err        error

	lastFilter models.DataSourceFilter
	lastCreate *models.CreateDataSourceRequest
	lastUpdate *models.UpdateDataSourceRequest
	deletedID  uuid.UUID
}

var _ services.DataSourceService = (*mockDataSourceService)(nil)

func (m *mockDataSourceService) List(ctx context.Context, filter models.DataSourceFilter) (*models.Page[*models.DataSource], error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	if m.page != nil {
		return m.page, nil
	}
	return models.NewPage([]*models.DataSource{}, 1, 20, 0), nil
}

func (m *mockDataSourceService) Get(ctx context.Context, id uuid.UUID) (*models.DataSource, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.dataSource, nil
}

func (m *mockDataSourceService) Create(ctx context.Context, req *models.CreateDataSourceRequest) (*models.DataSource, error) {
	m.lastCreate = req
	if m.err != nil {
		return nil, m.err
	}
	return m.dataSource, nil
}

func (m *mockDataSourceService) Update(ctx context.Context, id uuid.UUID, req *models.UpdateDataSourceRequest) (*models.DataSource, error) {
	m.lastUpdate = req
	if m.err != nil {
		return nil, m.err
	}
	return m.dataSource, nil
}

func (m *mockDataSourceService) Delete(ctx context.Context, id uuid.UUID) error {
	m.deletedID = id
	return m.err
}

func (m *mockDataSourceService) ListTypes() []models.DataSourceTypeInfo {
	return m.types
}

type mockConnectionTester struct {
	result *models.ConnectionTestResult
}

func (m *mockConnectionTester) TestConnection(ctx context.Context, req *models.ConnectionTestRequest) *models.ConnectionTestResult {
	return m.result
}

type mockSyncService struct {
	job       *models.DataSourceSync
	jobs      []models.DataSourceSync
	err       error
	lastStart *models.SyncRequest
}

var _ services.SyncService = (*mockSyncService)(nil)

func (m *mockSyncService) Start(ctx context.Context, dataSourceID uuid.UUID, req *models.SyncRequest) (*models.DataSourceSync, error) {
	m.lastStart = req
	if m.err != nil {
		return nil, m.err
	}
	return m.job, nil
}

func (m *mockSyncService) Get(ctx context.Context, dataSourceID, syncID uuid.UUID) (*models.DataSourceSync, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.job, nil
}

func (m *mockSyncService) List(ctx context.Context, dataSourceID uuid.UUID) ([]models.DataSourceSync, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.jobs, nil
}

func (m *mockSyncService) Cancel(ctx context.Context, dataSourceID, syncID uuid.UUID) (*models.DataSourceSync, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.job, nil
}

type mockQueryService struct {
	query     *models.Query
	queries   []*models.Query
	status    *models.QueryStatusView
	result    *models.QueryResult
	err       error
	lastLimit int
	lastSave  *models.SaveQueryRequest
}

var _ services.QueryService = (*mockQueryService)(nil)

func (m *mockQueryService) Execute(ctx context.Context, req *models.ExecuteQueryRequest) (*models.Query, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.query, nil
}

func (m *mockQueryService) Get(ctx context.Context, id uuid.UUID) (*models.Query, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.query, nil
}

func (m *mockQueryService) GetStatus(ctx context.Context, id uuid.UUID) (*models.QueryStatusView, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.status, nil
}

func (m *mockQueryService) GetResults(ctx context.Context, id uuid.UUID) (*models.QueryResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockQueryService) Save(ctx context.Context, id uuid.UUID, req *models.SaveQueryRequest) (*models.Query, error) {
	m.lastSave = req
	if m.err != nil {
		return nil, m.err
	}
	return m.query, nil
}

func (m *mockQueryService) Recent(ctx context.Context, limit int) ([]*models.Query, error) {
	m.lastLimit = limit
	return m.queries, m.err
}

func (m *mockQueryService) Popular(ctx context.Context, limit int) ([]*models.Query, error) {
	m.lastLimit = limit
	return m.queries, m.err
}

func (m *mockQueryService) Cancel(ctx context.Context, id uuid.UUID) (*models.Query, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.query, nil
}

type mockDashboardService struct {
	dashboard  *models.Dashboard
	dashboards []*models.Dashboard
	err        error
	lastUpdate *models.UpdateDashboardRequest
}

var _ services.DashboardService = (*mockDashboardService)(nil)

func (m *mockDashboardService) List(ctx context.Context) ([]*models.Dashboard, error) {
	return m.dashboards, m.err
}

func (m *mockDashboardService) Get(ctx context.Context, id uuid.UUID) (*models.Dashboard, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.dashboard, nil
}

func (m *mockDashboardService) Create(ctx context.Context, req *models.CreateDashboardRequest) (*models.Dashboard, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.dashboard, nil
}

func (m *mockDashboardService) Update(ctx context.Context, id uuid.UUID, req *models.UpdateDashboardRequest) (*models.Dashboard, error) {
	m.lastUpdate = req
	if m.err != nil {
		return nil, m.err
	}
	return m.dashboard, nil
}

func (m *mockDashboardService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.err
}

type mockUploadService struct {
	file       *models.UploadedFile
	preview    *models.FilePreview
	err        error
	lastInput  *services.UploadInput
	lastBody   string
	lastRows   int
	lastFileID string
}

var _ services.UploadService = (*mockUploadService)(nil)

func (m *mockUploadService) Upload(ctx context.Context, in *services.UploadInput) (*models.UploadedFile, error) {
	m.lastInput = in
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.lastBody = string(body)
	if m.err != nil {
		return nil, m.err
	}
	return m.file, nil
}

func (m *mockUploadService) Get(ctx context.Context, fileID string) (*models.UploadedFile, error) {
	m.lastFileID = fileID
	if m.err != nil {
		return nil, m.err
	}
	return m.file, nil
}

func (m *mockUploadService) Preview(ctx context.Context, fileID string, rows int) (*models.FilePreview, error) {
	m.lastFileID = fileID
	m.lastRows = rows
	if m.err != nil {
		return nil, m.err
	}
	return m.preview, nil
}

func (m *mockUploadService) OpenUpload(ctx context.Context, fileID string) (*models.UploadedFile, io.ReadCloser, error) {
	return nil, nil, m.err
}

type staticQueueStats workqueue.Stats

func (s staticQueueStats) Stats() workqueue.Stats {
	return workqueue.Stats(s)
}
