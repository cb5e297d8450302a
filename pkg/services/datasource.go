package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
	"github.com/ekaya-inc/genbi-engine/pkg/crypto"
	"github.com/ekaya-inc/genbi-engine/pkg/logging"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
	"github.com/ekaya-inc/genbi-engine/pkg/repositories"
	"github.com/ekaya-inc/genbi-engine/pkg/services/workqueue"
	sqlcheck "github.com/ekaya-inc/genbi-engine/pkg/sql"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// DataSourceService defines the data source lifecycle operations.
type DataSourceService interface {
	// List returns one filtered, sorted page of data sources.
	List(ctx context.Context, filter models.DataSourceFilter) (*models.Page[*models.DataSource], error)

	// Get returns a data source with its tables, relationships and sync history.
	Get(ctx context.Context, id uuid.UUID) (*models.DataSource, error)

	// Create persists a connecting data source and starts its connect task.
	Create(ctx context.Context, req *models.CreateDataSourceRequest) (*models.DataSource, error)

	// Update merges the provided fields. New connection details reconnect.
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateDataSourceRequest) (*models.DataSource, error)

	// Delete cancels running work for the data source and removes it.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListTypes returns the registered connector kinds.
	ListTypes() []models.DataSourceTypeInfo
}

// ScheduleReloader re-reads sync schedules after data sources change.
type ScheduleReloader interface {
	Reload(ctx context.Context) error
}

type dataSourceService struct {
	db         TxRunner
	repo       repositories.DataSourceRepository
	schemaRepo repositories.SchemaRepository
	syncRepo   repositories.SyncRepository
	loader     *sourceLoader
	sealer     *crypto.DetailsSealer
	factory    datasource.ConnectorFactory
	queue      TaskQueue
	schedules  ScheduleReloader
	logger     *zap.Logger
}

// NewDataSourceService creates the data source service. schedules may be nil.
func NewDataSourceService(
	db TxRunner,
	repo repositories.DataSourceRepository,
	schemaRepo repositories.SchemaRepository,
	syncRepo repositories.SyncRepository,
	sealer *crypto.DetailsSealer,
	factory datasource.ConnectorFactory,
	queue TaskQueue,
	schedules ScheduleReloader,
	logger *zap.Logger,
) DataSourceService {
	return &dataSourceService{
		db:         db,
		repo:       repo,
		schemaRepo: schemaRepo,
		syncRepo:   syncRepo,
		loader:     &sourceLoader{repo: repo, sealer: sealer},
		sealer:     sealer,
		factory:    factory,
		queue:      queue,
		schedules:  schedules,
		logger:     logger.Named("datasources"),
	}
}

var _ DataSourceService = (*dataSourceService)(nil)

func (s *dataSourceService) List(ctx context.Context, filter models.DataSourceFilter) (*models.Page[*models.DataSource], error) {
	if err := normalizeFilter(&filter); err != nil {
		return nil, err
	}

	items, sealed, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i, ds := range items {
		if err := s.loader.open(ds, sealed[i]); err != nil {
			return nil, err
		}
	}
	return models.NewPage(items, filter.Page, filter.PageSize, total), nil
}

// normalizeFilter validates filter values and applies defaults.
func normalizeFilter(f *models.DataSourceFilter) error {
	if res := sqlcheck.CheckFilterValue("search", f.Search); res != nil {
		return apperrors.Validationf("Invalid search filter")
	}
	if f.Status != "" && !f.Status.IsValid() {
		return apperrors.Validationf("Invalid status: %s", f.Status)
	}
	if f.Type != "" && !f.Type.IsValid() {
		return apperrors.Validationf("Invalid type: %s", f.Type)
	}
	if f.SortBy == "" {
		f.SortBy = "name"
	} else if _, ok := models.DataSourceSortColumns[f.SortBy]; !ok {
		return apperrors.Validationf("Invalid sortBy: %s", f.SortBy)
	}
	switch strings.ToLower(f.SortOrder) {
	case "":
		f.SortOrder = "asc"
	case "asc", "desc":
		f.SortOrder = strings.ToLower(f.SortOrder)
	default:
		return apperrors.Validationf("Invalid sortOrder: %s", f.SortOrder)
	}
	if f.Page < 0 {
		return apperrors.Validationf("page must be at least 1")
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PageSize < 0 || f.PageSize > maxPageSize {
		return apperrors.Validationf("pageSize must be between 1 and %d", maxPageSize)
	}
	if f.PageSize == 0 {
		f.PageSize = defaultPageSize
	}
	return nil
}

func (s *dataSourceService) Get(ctx context.Context, id uuid.UUID) (*models.DataSource, error) {
	ds, sealed, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.loader.open(ds, sealed); err != nil {
		return nil, err
	}

	if ds.Tables, err = s.schemaRepo.ListTables(ctx, id); err != nil {
		return nil, err
	}
	if ds.Relationships, err = s.schemaRepo.ListRelationships(ctx, id); err != nil {
		return nil, err
	}
	if ds.SyncHistory, err = s.syncRepo.ListByDataSource(ctx, id, 0); err != nil {
		return nil, err
	}
	return ds, nil
}

func (s *dataSourceService) Create(ctx context.Context, req *models.CreateDataSourceRequest) (*models.DataSource, error) {
	if err := validateName("Name", req.Name); err != nil {
		return nil, err
	}
	if err := validateDescription(req.Description); err != nil {
		return nil, err
	}
	if !req.Type.IsValid() {
		return nil, apperrors.Validationf("Invalid data source type: %s", req.Type)
	}

	raw := req.ConnectionDetails
	if raw == nil {
		raw = map[string]any{}
	}
	if req.FileID != "" && req.Type.IsFile() {
		raw["fileId"] = req.FileID
	}
	if _, err := models.ValidateConnectionDetails(req.Type, raw); err != nil {
		return nil, err
	}

	schedule, err := normalizeSchedule(req.SyncSchedule)
	if err != nil {
		return nil, err
	}

	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = DefaultCreatedBy
	}
	ds := &models.DataSource{
		ID:                uuid.New(),
		Name:              req.Name,
		Description:       req.Description,
		Type:              req.Type,
		Status:            models.DataSourceStatusConnecting,
		ConnectionDetails: raw,
		SyncSchedule:      schedule,
		CreatedBy:         createdBy,
	}

	sealed, err := s.sealer.Seal(ds.ID.String(), raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt connection details: %w", err)
	}
	if err := s.repo.Create(ctx, ds, sealed); err != nil {
		return nil, err
	}

	s.logger.Info("Created data source",
		zap.String("id", ds.ID.String()),
		zap.String("name", ds.Name),
		zap.String("type", string(ds.Type)))
	s.logger.Debug("Connection details",
		zap.String("id", ds.ID.String()),
		zap.Any("details", logging.SanitizeConnectionDetails(raw)))

	s.startConnect(ctx, ds.ID)
	if schedule != nil {
		s.reloadSchedules(ctx)
	}
	return ds, nil
}

func (s *dataSourceService) Update(ctx context.Context, id uuid.UUID, req *models.UpdateDataSourceRequest) (*models.DataSource, error) {
	ds, sealed, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.loader.open(ds, sealed); err != nil {
		return nil, err
	}

	if req.Name != nil {
		if err := validateName("Name", *req.Name); err != nil {
			return nil, err
		}
		ds.Name = *req.Name
	}
	if req.Description != nil {
		if err := validateDescription(req.Description); err != nil {
			return nil, err
		}
		ds.Description = req.Description
	}
	if req.SyncSchedule != nil {
		schedule, err := normalizeSchedule(req.SyncSchedule)
		if err != nil {
			return nil, err
		}
		ds.SyncSchedule = schedule
	}

	reconnect := req.ConnectionDetails != nil
	if reconnect {
		if _, err := models.ValidateConnectionDetails(ds.Type, req.ConnectionDetails); err != nil {
			return nil, err
		}
		ds.ConnectionDetails = req.ConnectionDetails

		sealed, err = s.sealer.Seal(ds.ID.String(), ds.ConnectionDetails)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt connection details: %w", err)
		}
		// A connect task for the old details must not finish after this update.
		s.queue.Cancel(id.String())
	}

	// Status is left to the connect task unless the details changed; the row
	// read above may already be stale.
	err = s.db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, ds); err != nil {
			return err
		}
		if reconnect {
			return s.repo.Reconnect(ctx, id, sealed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Updated data source",
		zap.String("id", id.String()),
		zap.Bool("reconnect", reconnect))

	if reconnect {
		s.startConnect(ctx, id)
	}
	if req.SyncSchedule != nil {
		s.reloadSchedules(ctx)
	}
	return s.Get(ctx, id)
}

func (s *dataSourceService) Delete(ctx context.Context, id uuid.UUID) error {
	exists, err := s.repo.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.NotFoundf("Data source with ID %s not found", id)
	}

	s.queue.Cancel(id.String())
	jobs, err := s.syncRepo.ListByDataSource(ctx, id, 0)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if !job.Status.IsTerminal() {
			s.queue.Cancel(job.ID.String())
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Deleted data source", zap.String("id", id.String()))
	s.reloadSchedules(ctx)
	return nil
}

func (s *dataSourceService) ListTypes() []models.DataSourceTypeInfo {
	return s.factory.ListTypes()
}

func (s *dataSourceService) reloadSchedules(ctx context.Context) {
	if s.schedules == nil {
		return
	}
	if err := s.schedules.Reload(ctx); err != nil {
		s.logger.Error("Failed to reload sync schedules", zap.Error(err))
	}
}

// startConnect enqueues the connect task. A rejected task leaves the data
// source in error rather than connecting forever.
func (s *dataSourceService) startConnect(ctx context.Context, id uuid.UUID) {
	if err := s.queue.Enqueue(newConnectTask(s, id)); err != nil {
		s.logger.Error("Failed to enqueue connect task", zap.String("id", id.String()), zap.Error(err))
		if _, ferr := s.repo.MarkConnectFailed(ctx, id, err.Error()); ferr != nil {
			s.logger.Error("Failed to mark data source as failed", zap.String("id", id.String()), zap.Error(ferr))
		}
	}
}

// errNotConnecting rolls back a schema write when the data source left the
// connecting state while discovery ran.
var errNotConnecting = errors.New("data source is no longer connecting")

// connectTask discovers the schema of a data source and marks it connected.
type connectTask struct {
	workqueue.BaseTask
	svc *dataSourceService
	id  uuid.UUID
}

func newConnectTask(svc *dataSourceService, id uuid.UUID) *connectTask {
	return &connectTask{
		BaseTask: workqueue.NewBaseTask(id.String(), "Connect data source", false),
		svc:      svc,
		id:       id,
	}
}

// Execute implements workqueue.Task.
func (t *connectTask) Execute(ctx context.Context) error {
	return t.svc.connect(ctx, t.id)
}

func (s *dataSourceService) connect(ctx context.Context, id uuid.UUID) error {
	err := s.discover(ctx, id)
	if err == nil || errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, errNotConnecting) {
		return nil
	}
	if cancelled(ctx, err) {
		// Superseded, deleted or shutting down. Recovery covers the last case.
		return err
	}

	msg := logging.SanitizeError(err)
	s.logger.Error("Connect failed", zap.String("id", id.String()), zap.String("error", msg))
	if _, ferr := s.repo.MarkConnectFailed(ctx, id, msg); ferr != nil {
		s.logger.Error("Failed to record connect failure", zap.String("id", id.String()), zap.Error(ferr))
	}
	return err
}

func (s *dataSourceService) discover(ctx context.Context, id uuid.UUID) error {
	ds, details, err := s.loader.load(ctx, id)
	if err != nil {
		return err
	}

	discoverer, err := s.factory.NewSchemaDiscoverer(ctx, ds.Type, details, datasource.Options{Name: ds.Name})
	if err != nil {
		return err
	}
	defer discoverer.Close()

	schema, err := discoverer.DiscoverSchema(ctx)
	if err != nil {
		return err
	}
	tables, relationships := schemaFromDiscovery(id, schema)

	return s.db.RunInTx(ctx, func(ctx context.Context) error {
		exists, err := s.repo.Exists(ctx, id)
		if err != nil || !exists {
			return err
		}
		if err := s.schemaRepo.ReplaceSchema(ctx, id, tables, relationships); err != nil {
			return err
		}
		ok, err := s.repo.MarkConnected(ctx, id, schema.RecordCount, time.Now().UTC())
		if err != nil {
			return err
		}
		if !ok {
			return errNotConnecting
		}
		s.logger.Info("Data source connected",
			zap.String("id", id.String()),
			zap.Int("tables", len(tables)),
			zap.Int64("record_count", schema.RecordCount))
		return nil
	})
}
