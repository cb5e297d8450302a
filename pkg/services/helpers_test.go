package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource/simulated"
	"github.com/ekaya-inc/genbi-engine/pkg/crypto"
	"github.com/ekaya-inc/genbi-engine/pkg/database"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
	"github.com/ekaya-inc/genbi-engine/pkg/repositories"
	"github.com/ekaya-inc/genbi-engine/pkg/services/workqueue"
	"github.com/ekaya-inc/genbi-engine/pkg/testhelpers"
)

// Test encryption key (32 bytes, base64 encoded).
const testEncryptionKey = "dGVzdC1rZXktZm9yLXVuaXQtdGVzdHMtMzItYnl0ZXM="

// recordingQueue collects tasks instead of running them so tests control
// when background work happens.
type recordingQueue struct {
	mu         sync.Mutex
	tasks      []workqueue.Task
	cancelled  []string
	enqueueErr error
}

func (q *recordingQueue) Enqueue(task workqueue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelled = append(q.cancelled, id)
	return true
}

// runAll executes and drains every collected task in order.
func (q *recordingQueue) runAll(ctx context.Context) []error {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	var errs []error
	for _, task := range tasks {
		errs = append(errs, task.Execute(ctx))
	}
	return errs
}

func (q *recordingQueue) pending() []workqueue.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]workqueue.Task(nil), q.tasks...)
}

func (q *recordingQueue) wasCancelled(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range q.cancelled {
		if c == id {
			return true
		}
	}
	return false
}

// testEnv wires real SQLite repositories with simulated zero-delay connectors.
type testEnv struct {
	db         *database.DB
	dsRepo     repositories.DataSourceRepository
	schemaRepo repositories.SchemaRepository
	syncRepo   repositories.SyncRepository
	queryRepo  repositories.QueryRepository
	resultRepo repositories.QueryResultRepository
	dashRepo   repositories.DashboardRepository
	uploadRepo repositories.UploadRepository
	sealer     *crypto.DetailsSealer
	factory    datasource.ConnectorFactory
	queue      *recordingQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	sealer, err := crypto.NewDetailsSealer(testEncryptionKey)
	require.NoError(t, err)

	return &testEnv{
		db:         db,
		dsRepo:     repositories.NewDataSourceRepository(db),
		schemaRepo: repositories.NewSchemaRepository(db),
		syncRepo:   repositories.NewSyncRepository(db),
		queryRepo:  repositories.NewQueryRepository(db),
		resultRepo: repositories.NewQueryResultRepository(db),
		dashRepo:   repositories.NewDashboardRepository(db),
		uploadRepo: repositories.NewUploadRepository(db),
		sealer:     sealer,
		factory:    datasource.NewConnectorFactory(false, datasource.Options{Logger: zap.NewNop()}),
		queue:      &recordingQueue{},
	}
}

func (e *testEnv) dataSources() DataSourceService {
	return NewDataSourceService(e.db, e.dsRepo, e.schemaRepo, e.syncRepo, e.sealer, e.factory, e.queue, nil, zap.NewNop())
}

func (e *testEnv) syncs() SyncService {
	return NewSyncService(e.db, e.dsRepo, e.schemaRepo, e.syncRepo, e.sealer, e.factory, e.queue, nil, SyncDelays{}, zap.NewNop())
}

// connectedSource creates a postgresql data source and runs its connect task.
func (e *testEnv) connectedSource(t *testing.T, name string) *models.DataSource {
	t.Helper()
	ctx := context.Background()
	ds, err := e.dataSources().Create(ctx, &models.CreateDataSourceRequest{
		Name: name,
		Type: models.DataSourceTypePostgreSQL,
		ConnectionDetails: map[string]any{
			"host":     "db.internal",
			"database": "marketing",
			"username": "analyst",
			"password": "s3cret",
		},
	})
	require.NoError(t, err)
	for _, err := range e.queue.runAll(ctx) {
		require.NoError(t, err)
	}
	return ds
}

// failingFactory returns errors from every connector constructor.
type failingFactory struct {
	err error
}

func (f *failingFactory) NewConnectionTester(context.Context, models.DataSourceType, models.ConnectionDetails, datasource.Options) (datasource.ConnectionTester, error) {
	return nil, f.err
}

func (f *failingFactory) NewSchemaDiscoverer(context.Context, models.DataSourceType, models.ConnectionDetails, datasource.Options) (datasource.SchemaDiscoverer, error) {
	return nil, f.err
}

func (f *failingFactory) NewQueryExecutor(context.Context, models.DataSourceType, models.ConnectionDetails, datasource.Options) (datasource.QueryExecutor, error) {
	return nil, f.err
}

func (f *failingFactory) ListTypes() []models.DataSourceTypeInfo { return nil }

var errConnectionRefused = errors.New("dial tcp 10.0.0.5:5432: connection refused")

func strPtr(s string) *string { return &s }

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}
