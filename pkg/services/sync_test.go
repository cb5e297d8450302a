package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
	"github.com/ekaya-inc/genbi-engine/pkg/repositories"
)

func TestSyncService_CompletesAndUpdatesDataSource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ds := env.connectedSource(t, "Warehouse")
	svc := env.syncs()

	before := time.Now().UTC()
	job, err := svc.Start(ctx, ds.ID, &models.SyncRequest{FullSync: true})
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusQueued, job.Status)
	assert.True(t, job.FullSync)
	require.NotNil(t, job.EstimatedCompletionTime)
	assert.WithinDuration(t, before.Add(30*time.Minute), *job.EstimatedCompletionTime, time.Minute)

	for _, err := range env.queue.runAll(ctx) {
		require.NoError(t, err)
	}

	got, err := svc.Get(ctx, ds.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 2, got.TotalTables)
	assert.Equal(t, 2, got.TablesProcessed)
	assert.GreaterOrEqual(t, got.RecordsProcessed, int64(2000))
	assert.Less(t, got.RecordsProcessed, int64(22000))
	assert.NotNil(t, got.StartTime)
	assert.NotNil(t, got.EndTime)

	source, err := env.dataSources().Get(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, got.RecordsProcessed, source.RecordCount)
	require.Len(t, source.SyncHistory, 1)
	assert.Equal(t, job.ID, source.SyncHistory[0].ID)
}

func TestSyncService_TableSubset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ds := env.connectedSource(t, "Warehouse")
	svc := env.syncs()

	job, err := svc.Start(ctx, ds.ID, &models.SyncRequest{Tables: []string{"campaigns", "missing_table"}})
	require.NoError(t, err)
	for _, err := range env.queue.runAll(ctx) {
		require.NoError(t, err)
	}

	got, err := svc.Get(ctx, ds.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusCompleted, got.Status)
	assert.Equal(t, 1, got.TotalTables)
	assert.Equal(t, 1, got.TablesProcessed)
	assert.Equal(t, []string{"campaigns", "missing_table"}, got.Tables)
}

func TestSyncService_RejectsConcurrentSync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ds := env.connectedSource(t, "Warehouse")
	svc := env.syncs()

	_, err := svc.Start(ctx, ds.ID, nil)
	require.NoError(t, err)

	_, err = svc.Start(ctx, ds.ID, nil)
	require.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, "A sync job is already running for data source "+ds.ID.String(), apperrors.Message(err, ""))
}

func TestSyncService_StartUnknownDataSource(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.syncs().Start(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSyncService_CancelStopsTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ds := env.connectedSource(t, "Warehouse")
	svc := env.syncs()

	job, err := svc.Start(ctx, ds.ID, nil)
	require.NoError(t, err)

	cancelledJob, err := svc.Cancel(ctx, ds.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusCancelled, cancelledJob.Status)
	assert.NotNil(t, cancelledJob.EndTime)
	assert.True(t, env.queue.wasCancelled(job.ID.String()))

	// The task still runs here because the recording queue ignores Cancel.
	for _, err := range env.queue.runAll(ctx) {
		require.NoError(t, err)
	}
	got, err := svc.Get(ctx, ds.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusCancelled, got.Status)

	_, err = svc.Cancel(ctx, ds.ID, job.ID)
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.Equal(t, "Cannot cancel a sync job with status cancelled", apperrors.Message(err, ""))

	// A new sync is allowed once the previous one is terminal.
	_, err = svc.Start(ctx, ds.ID, nil)
	assert.NoError(t, err)
}

func TestSyncService_GetWrongDataSource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ds := env.connectedSource(t, "Warehouse")
	other := env.connectedSource(t, "Other")

	job, err := env.syncs().Start(ctx, ds.ID, nil)
	require.NoError(t, err)

	_, err = env.syncs().Get(ctx, other.ID, job.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSyncService_EnqueueFailureFailsJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ds := env.connectedSource(t, "Warehouse")
	env.queue.enqueueErr = errors.New("work queue is shut down")

	_, err := env.syncs().Start(ctx, ds.ID, nil)
	require.Error(t, err)

	jobs, err := env.syncs().List(ctx, ds.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.SyncStatusFailed, jobs[0].Status)
}

func TestSyncService_DiscovererErrorFailsJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ds := env.connectedSource(t, "Warehouse")
	env.factory = &failingFactory{err: errConnectionRefused}

	job, err := env.syncs().Start(ctx, ds.ID, nil)
	require.NoError(t, err)
	errs := env.queue.runAll(ctx)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], errConnectionRefused)

	got, err := env.syncs().Get(ctx, ds.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Contains(t, *got.Error, "connection refused")
}

func TestSyncService_ListUnknownDataSource(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.syncs().List(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// countingFactory hands out discoverers that count 1000 records per table
// and fail on one table.
type countingFactory struct {
	datasource.ConnectorFactory
	failOn string
}

func (f *countingFactory) NewSchemaDiscoverer(context.Context, models.DataSourceType, models.ConnectionDetails, datasource.Options) (datasource.SchemaDiscoverer, error) {
	return &countingDiscoverer{failOn: f.failOn}, nil
}

type countingDiscoverer struct {
	failOn string
}

func (d *countingDiscoverer) DiscoverSchema(context.Context) (*datasource.DiscoveredSchema, error) {
	return &datasource.DiscoveredSchema{}, nil
}

func (d *countingDiscoverer) CountTableRecords(_ context.Context, table string) (int64, error) {
	if table == d.failOn {
		return 0, errConnectionRefused
	}
	return 1000, nil
}

func (d *countingDiscoverer) Close() error { return nil }

// progressLog records every progress value the sync loop writes.
type progressLog struct {
	repositories.SyncRepository
	values []int
}

func (p *progressLog) UpdateProgress(ctx context.Context, syncID uuid.UUID, tablesProcessed, progress int, recordsProcessed int64) (bool, error) {
	p.values = append(p.values, progress)
	return p.SyncRepository.UpdateProgress(ctx, syncID, tablesProcessed, progress, recordsProcessed)
}

func TestSyncService_CountErrorMidLoopFailsJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ds := env.connectedSource(t, "Warehouse")

	tables := []models.DataSourceTable{
		{Name: "campaigns", Columns: []models.DataSourceColumn{{Name: "id", Type: "integer"}}},
		{Name: "ad_groups", Columns: []models.DataSourceColumn{{Name: "id", Type: "integer"}}},
		{Name: "metrics", Columns: []models.DataSourceColumn{{Name: "id", Type: "integer"}}},
		{Name: "conversions", Columns: []models.DataSourceColumn{{Name: "id", Type: "integer"}}},
	}
	require.NoError(t, env.schemaRepo.ReplaceSchema(ctx, ds.ID, tables, nil))

	env.factory = &countingFactory{ConnectorFactory: env.factory, failOn: "metrics"}
	log := &progressLog{SyncRepository: env.syncRepo}
	svc := NewSyncService(env.db, env.dsRepo, env.schemaRepo, log, env.sealer, env.factory, env.queue, nil, SyncDelays{}, zap.NewNop())

	job, err := svc.Start(ctx, ds.ID, &models.SyncRequest{Tables: []string{"campaigns", "ad_groups", "metrics"}})
	require.NoError(t, err)
	errs := env.queue.runAll(ctx)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], errConnectionRefused)

	require.Equal(t, []int{0, 33}, log.values)
	for i := 1; i < len(log.values); i++ {
		assert.GreaterOrEqual(t, log.values[i], log.values[i-1], "progress never decreases")
	}

	got, err := svc.Get(ctx, ds.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusFailed, got.Status)
	assert.NotNil(t, got.EndTime)
	assert.Equal(t, 33, got.Progress, "progress stays at the last completed step")
	assert.Equal(t, 1, got.TablesProcessed)
	assert.Equal(t, int64(2000), got.RecordsProcessed)
	assert.Equal(t, 3, got.TotalTables)
	require.NotNil(t, got.Error)
	assert.Contains(t, *got.Error, "metrics")
}
