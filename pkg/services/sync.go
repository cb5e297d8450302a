package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
	"github.com/ekaya-inc/genbi-engine/pkg/crypto"
	"github.com/ekaya-inc/genbi-engine/pkg/locks"
	"github.com/ekaya-inc/genbi-engine/pkg/logging"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
	"github.com/ekaya-inc/genbi-engine/pkg/repositories"
	"github.com/ekaya-inc/genbi-engine/pkg/services/workqueue"
)

// SyncService runs sync jobs that refresh record counts of a data source.
type SyncService interface {
	// Start creates a queued job and enqueues it. Fails with ErrConflict
	// while another job of the same data source is queued or in progress.
	Start(ctx context.Context, dataSourceID uuid.UUID, req *models.SyncRequest) (*models.DataSourceSync, error)

	Get(ctx context.Context, dataSourceID, syncID uuid.UUID) (*models.DataSourceSync, error)

	// List returns the sync history of a data source, newest first.
	List(ctx context.Context, dataSourceID uuid.UUID) ([]models.DataSourceSync, error)

	// Cancel stops a queued or in-progress job.
	Cancel(ctx context.Context, dataSourceID, syncID uuid.UUID) (*models.DataSourceSync, error)
}

// SyncDelays pace the sync loop.
type SyncDelays struct {
	Start time.Duration
	Table time.Duration
}

type syncService struct {
	db       TxRunner
	dsRepo   repositories.DataSourceRepository
	schema   repositories.SchemaRepository
	syncRepo repositories.SyncRepository
	loader   *sourceLoader
	factory  datasource.ConnectorFactory
	queue    TaskQueue
	locker   locks.Locker
	delays   SyncDelays
	logger   *zap.Logger
}

// NewSyncService creates the sync service. A nil locker uses an in-process lock.
func NewSyncService(
	db TxRunner,
	dsRepo repositories.DataSourceRepository,
	schema repositories.SchemaRepository,
	syncRepo repositories.SyncRepository,
	sealer *crypto.DetailsSealer,
	factory datasource.ConnectorFactory,
	queue TaskQueue,
	locker locks.Locker,
	delays SyncDelays,
	logger *zap.Logger,
) SyncService {
	if locker == nil {
		locker = locks.NewMemoryLocker()
	}
	return &syncService{
		db:       db,
		dsRepo:   dsRepo,
		schema:   schema,
		syncRepo: syncRepo,
		loader:   &sourceLoader{repo: dsRepo, sealer: sealer},
		factory:  factory,
		queue:    queue,
		locker:   locker,
		delays:   delays,
		logger:   logger.Named("sync"),
	}
}

var _ SyncService = (*syncService)(nil)

func (s *syncService) Start(ctx context.Context, dataSourceID uuid.UUID, req *models.SyncRequest) (*models.DataSourceSync, error) {
	if req == nil {
		req = &models.SyncRequest{}
	}
	exists, err := s.dsRepo.Exists(ctx, dataSourceID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.NotFoundf("Data source with ID %s not found", dataSourceID)
	}

	release, err := s.locker.Acquire(ctx, "sync:"+dataSourceID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	defer release()

	active, err := s.syncRepo.HasActive(ctx, dataSourceID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, apperrors.Conflictf("A sync job is already running for data source %s", dataSourceID)
	}

	estimated := time.Now().UTC().Add(models.EstimatedSyncDuration)
	job := &models.DataSourceSync{
		ID:                      uuid.New(),
		DataSourceID:            dataSourceID,
		Status:                  models.SyncStatusQueued,
		FullSync:                req.FullSync,
		Tables:                  req.Tables,
		EstimatedCompletionTime: &estimated,
	}
	if err := s.syncRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(newSyncTask(s, job)); err != nil {
		s.logger.Error("Failed to enqueue sync task", zap.String("sync_id", job.ID.String()), zap.Error(err))
		if _, ferr := s.syncRepo.Fail(ctx, job.ID, err.Error(), time.Now().UTC()); ferr != nil {
			s.logger.Error("Failed to mark sync job as failed", zap.String("sync_id", job.ID.String()), zap.Error(ferr))
		}
		return nil, fmt.Errorf("failed to start sync: %w", err)
	}

	s.logger.Info("Sync job queued",
		zap.String("data_source_id", dataSourceID.String()),
		zap.String("sync_id", job.ID.String()),
		zap.Bool("full_sync", job.FullSync))
	return job, nil
}

func (s *syncService) Get(ctx context.Context, dataSourceID, syncID uuid.UUID) (*models.DataSourceSync, error) {
	return s.syncRepo.GetByID(ctx, dataSourceID, syncID)
}

func (s *syncService) List(ctx context.Context, dataSourceID uuid.UUID) ([]models.DataSourceSync, error) {
	exists, err := s.dsRepo.Exists(ctx, dataSourceID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.NotFoundf("Data source with ID %s not found", dataSourceID)
	}
	jobs, err := s.syncRepo.ListByDataSource(ctx, dataSourceID, 0)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []models.DataSourceSync{}
	}
	return jobs, nil
}

func (s *syncService) Cancel(ctx context.Context, dataSourceID, syncID uuid.UUID) (*models.DataSourceSync, error) {
	job, err := s.syncRepo.GetByID(ctx, dataSourceID, syncID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, apperrors.InvalidStatef("Cannot cancel a sync job with status %s", job.Status)
	}

	ok, err := s.syncRepo.Cancel(ctx, syncID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		// Finished between the read and the write.
		job, err = s.syncRepo.GetByID(ctx, dataSourceID, syncID)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.InvalidStatef("Cannot cancel a sync job with status %s", job.Status)
	}
	s.queue.Cancel(syncID.String())

	s.logger.Info("Sync job cancelled",
		zap.String("data_source_id", dataSourceID.String()),
		zap.String("sync_id", syncID.String()))
	return s.syncRepo.GetByID(ctx, dataSourceID, syncID)
}

// syncTask walks the tables of a data source and counts their records.
type syncTask struct {
	workqueue.BaseTask
	svc *syncService
	job models.DataSourceSync
}

func newSyncTask(svc *syncService, job *models.DataSourceSync) *syncTask {
	return &syncTask{
		BaseTask: workqueue.NewBaseTask(job.ID.String(), "Sync data source", false),
		svc:      svc,
		job:      *job,
	}
}

// Execute implements workqueue.Task.
func (t *syncTask) Execute(ctx context.Context) error {
	err := t.svc.run(ctx, &t.job)
	if err == nil || errors.Is(err, errSyncStopped) {
		return nil
	}
	if cancelled(ctx, err) {
		return err
	}

	msg := logging.SanitizeError(err)
	t.svc.logger.Error("Sync failed",
		zap.String("sync_id", t.job.ID.String()),
		zap.String("error", msg))
	if _, ferr := t.svc.syncRepo.Fail(ctx, t.job.ID, msg, time.Now().UTC()); ferr != nil {
		t.svc.logger.Error("Failed to record sync failure", zap.String("sync_id", t.job.ID.String()), zap.Error(ferr))
	}
	return err
}

// errSyncStopped ends the loop when a conditional write finds the job no
// longer in progress, typically after a cancel.
var errSyncStopped = errors.New("sync job is no longer in progress")

func (s *syncService) run(ctx context.Context, job *models.DataSourceSync) error {
	if err := sleep(ctx, s.delays.Start); err != nil {
		return err
	}

	ok, err := s.syncRepo.Start(ctx, job.ID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return errSyncStopped
	}

	tables, err := s.resolveTables(ctx, job)
	if err != nil {
		return err
	}
	total := len(tables)
	if err := s.check(s.syncRepo.SetTotals(ctx, job.ID, total)); err != nil {
		return err
	}

	ds, details, err := s.loader.load(ctx, job.DataSourceID)
	if err != nil {
		return err
	}
	counter, err := s.factory.NewSchemaDiscoverer(ctx, ds.Type, details, datasource.Options{Name: ds.Name})
	if err != nil {
		return err
	}
	defer counter.Close()

	var records int64
	for i, table := range tables {
		n, err := counter.CountTableRecords(ctx, table)
		if err != nil {
			return fmt.Errorf("failed to count records of %s: %w", table, err)
		}
		records += n

		progress := i * 100 / total
		if err := s.check(s.syncRepo.UpdateProgress(ctx, job.ID, i, progress, records)); err != nil {
			return err
		}
		s.logger.Debug("Sync progress",
			zap.String("sync_id", job.ID.String()),
			zap.String("table", table),
			zap.Int("progress", progress),
			zap.Int64("records", records))

		if err := sleep(ctx, s.delays.Table); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	err = s.db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.check(s.syncRepo.Complete(ctx, job.ID, total, records, now)); err != nil {
			return err
		}
		return s.dsRepo.RecordSync(ctx, job.DataSourceID, records, now)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Sync completed",
		zap.String("data_source_id", job.DataSourceID.String()),
		zap.String("sync_id", job.ID.String()),
		zap.Int("tables", total),
		zap.Int64("records", records))
	return nil
}

// resolveTables returns the table names to sync: all tables of the data
// source, or the requested subset in discovery order.
func (s *syncService) resolveTables(ctx context.Context, job *models.DataSourceSync) ([]string, error) {
	tables, err := s.schema.ListTables(ctx, job.DataSourceID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		if len(job.Tables) == 0 || slices.Contains(job.Tables, t.Name) {
			names = append(names, t.Name)
		}
	}
	return names, nil
}

// check turns a conditional write outcome into errSyncStopped when no row matched.
func (s *syncService) check(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return errSyncStopped
	}
	return nil
}
