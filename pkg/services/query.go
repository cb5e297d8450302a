package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

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
	defaultQueryListLimit = 10
	maxQueryListLimit     = 100
)

// QueryService runs questions against data sources in the background.
type QueryService interface {
	// Execute stores a pending query and enqueues it.
	Execute(ctx context.Context, req *models.ExecuteQueryRequest) (*models.Query, error)

	Get(ctx context.Context, id uuid.UUID) (*models.Query, error)
	GetStatus(ctx context.Context, id uuid.UUID) (*models.QueryStatusView, error)
	GetResults(ctx context.Context, id uuid.UUID) (*models.QueryResult, error)

	// Save names a completed query.
	Save(ctx context.Context, id uuid.UUID, req *models.SaveQueryRequest) (*models.Query, error)

	// Recent returns the newest queries.
	Recent(ctx context.Context, limit int) ([]*models.Query, error)

	// Popular returns the newest saved queries.
	Popular(ctx context.Context, limit int) ([]*models.Query, error)

	// Cancel stops a pending or running query.
	Cancel(ctx context.Context, id uuid.UUID) (*models.Query, error)
}

type queryService struct {
	db         TxRunner
	repo       repositories.QueryRepository
	results    repositories.QueryResultRepository
	dsRepo     repositories.DataSourceRepository
	schemaRepo repositories.SchemaRepository
	loader     *sourceLoader
	factory    datasource.ConnectorFactory
	generator  SQLGenerationService
	queue      TaskQueue
	rowLimit   int
	logger     *zap.Logger
}

// NewQueryService creates the query service. rowLimit bounds result rows.
func NewQueryService(
	db TxRunner,
	repo repositories.QueryRepository,
	results repositories.QueryResultRepository,
	dsRepo repositories.DataSourceRepository,
	schemaRepo repositories.SchemaRepository,
	sealer *crypto.DetailsSealer,
	factory datasource.ConnectorFactory,
	generator SQLGenerationService,
	queue TaskQueue,
	rowLimit int,
	logger *zap.Logger,
) QueryService {
	return &queryService{
		db:         db,
		repo:       repo,
		results:    results,
		dsRepo:     dsRepo,
		schemaRepo: schemaRepo,
		loader:     &sourceLoader{repo: dsRepo, sealer: sealer},
		factory:    factory,
		generator:  generator,
		queue:      queue,
		rowLimit:   rowLimit,
		logger:     logger.Named("queries"),
	}
}

var _ QueryService = (*queryService)(nil)

func (s *queryService) Execute(ctx context.Context, req *models.ExecuteQueryRequest) (*models.Query, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, apperrors.Validationf("Query text is required")
	}
	if utf8.RuneCountInString(text) > maxQueryTextLength {
		return nil, apperrors.Validationf("Query text must be at most %d characters", maxQueryTextLength)
	}
	queryType := req.Type
	if queryType == "" {
		queryType = models.QueryTypeNaturalLanguage
	}
	if !queryType.IsValid() {
		return nil, apperrors.Validationf("Invalid query type: %s", req.Type)
	}
	if req.DataSourceID == uuid.Nil {
		return nil, apperrors.Validationf("dataSourceId is required")
	}

	exists, err := s.dsRepo.Exists(ctx, req.DataSourceID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.NotFoundf("Data source with ID %s not found", req.DataSourceID)
	}

	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = DefaultCreatedBy
	}
	q := &models.Query{
		ID:           uuid.New(),
		Text:         text,
		Type:         queryType,
		Status:       models.QueryStatusPending,
		DataSourceID: req.DataSourceID,
		CreatedBy:    createdBy,
	}
	if queryType == models.QueryTypeSQL {
		q.SQL = &text
	}
	if err := s.repo.Create(ctx, q); err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(newQueryTask(s, q)); err != nil {
		s.logger.Error("Failed to enqueue query task", zap.String("query_id", q.ID.String()), zap.Error(err))
		if _, ferr := s.repo.Fail(ctx, q.ID, err.Error()); ferr != nil {
			s.logger.Error("Failed to mark query as failed", zap.String("query_id", q.ID.String()), zap.Error(ferr))
		}
		return nil, err
	}

	s.logger.Info("Query queued",
		zap.String("query_id", q.ID.String()),
		zap.String("data_source_id", q.DataSourceID.String()),
		zap.String("type", string(q.Type)))
	return q, nil
}

func (s *queryService) Get(ctx context.Context, id uuid.UUID) (*models.Query, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *queryService) GetStatus(ctx context.Context, id uuid.UUID) (*models.QueryStatusView, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &models.QueryStatusView{Status: q.Status}
	if q.Error != nil {
		view.Error = *q.Error
	}
	return view, nil
}

func (s *queryService) GetResults(ctx context.Context, id uuid.UUID) (*models.QueryResult, error) {
	return s.results.GetByQueryID(ctx, id)
}

func (s *queryService) Save(ctx context.Context, id uuid.UUID, req *models.SaveQueryRequest) (*models.Query, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status != models.QueryStatusCompleted {
		return nil, apperrors.InvalidStatef("Cannot save a query that has not completed successfully")
	}
	if err := validateName("Name", req.Name); err != nil {
		return nil, err
	}
	if err := validateDescription(req.Description); err != nil {
		return nil, err
	}

	ok, err := s.repo.Save(ctx, id, req.Name, req.Description)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.InvalidStatef("Cannot save a query that has not completed successfully")
	}
	s.logger.Info("Query saved", zap.String("query_id", id.String()), zap.String("name", req.Name))
	return s.repo.GetByID(ctx, id)
}

func (s *queryService) Recent(ctx context.Context, limit int) ([]*models.Query, error) {
	return s.repo.ListRecent(ctx, clampLimit(limit, defaultQueryListLimit, maxQueryListLimit))
}

func (s *queryService) Popular(ctx context.Context, limit int) ([]*models.Query, error) {
	return s.repo.ListSaved(ctx, clampLimit(limit, defaultQueryListLimit, maxQueryListLimit))
}

func (s *queryService) Cancel(ctx context.Context, id uuid.UUID) (*models.Query, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status.IsTerminal() {
		return nil, apperrors.InvalidStatef("Cannot cancel a query with status %s", q.Status)
	}

	ok, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		q, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.InvalidStatef("Cannot cancel a query with status %s", q.Status)
	}
	s.queue.Cancel(id.String())

	s.logger.Info("Query cancelled", zap.String("query_id", id.String()))
	return s.repo.GetByID(ctx, id)
}

// queryTask generates (for natural language), validates and runs the SQL of
// one query and stores its result.
type queryTask struct {
	workqueue.BaseTask
	svc   *queryService
	query models.Query
}

func newQueryTask(svc *queryService, q *models.Query) *queryTask {
	return &queryTask{
		BaseTask: workqueue.NewBaseTask(q.ID.String(), "Execute query", q.Type == models.QueryTypeNaturalLanguage),
		svc:      svc,
		query:    *q,
	}
}

// Execute implements workqueue.Task.
func (t *queryTask) Execute(ctx context.Context) error {
	err := t.svc.run(ctx, &t.query)
	if err == nil || errors.Is(err, errQueryStopped) || errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if cancelled(ctx, err) {
		return err
	}

	msg := logging.SanitizeError(err)
	t.svc.logger.Error("Query failed",
		zap.String("query_id", t.query.ID.String()),
		zap.String("error", msg))
	if _, ferr := t.svc.repo.Fail(ctx, t.query.ID, msg); ferr != nil {
		t.svc.logger.Error("Failed to record query failure", zap.String("query_id", t.query.ID.String()), zap.Error(ferr))
	}
	return err
}

// errQueryStopped ends the task when a conditional write finds the query
// already cancelled or gone.
var errQueryStopped = errors.New("query is no longer running")

func (s *queryService) run(ctx context.Context, q *models.Query) error {
	if err := stopped(s.repo.MarkRunning(ctx, q.ID)); err != nil {
		return err
	}

	ds, details, err := s.loader.load(ctx, q.DataSourceID)
	if err != nil {
		return err
	}

	sqlText := q.Text
	if q.Type == models.QueryTypeNaturalLanguage {
		tables, err := s.schemaRepo.ListTables(ctx, ds.ID)
		if err != nil {
			return err
		}
		relationships, err := s.schemaRepo.ListRelationships(ctx, ds.ID)
		if err != nil {
			return err
		}
		sqlText, err = s.generator.GenerateSQL(ctx, q.Text, BuildSchemaDescription(tables, relationships))
		if err != nil {
			return err
		}
	}

	normalized, err := sqlcheck.ValidateReadOnly(sqlText)
	if err != nil {
		return err
	}
	if err := stopped(s.repo.SetSQL(ctx, q.ID, normalized)); err != nil {
		return err
	}

	executor, err := s.factory.NewQueryExecutor(ctx, ds.Type, details, datasource.Options{Name: ds.Name})
	if err != nil {
		return err
	}
	defer executor.Close()

	start := time.Now()
	res, err := executor.Query(ctx, normalized, s.rowLimit)
	if err != nil {
		return err
	}
	executionMs := time.Since(start).Milliseconds()

	insights := s.generator.GenerateInsights(ctx, q.Text, normalized, res.Rows)
	if len(insights) == 0 {
		for _, note := range res.Notes {
			insights = append(insights, models.Insight{Title: "Observation", Description: note, Type: models.InsightTypeInfo})
		}
	}
	visualizations := s.generator.SuggestVisualizations(ctx, q.Text, normalized, res.Rows)

	result := &models.QueryResult{
		QueryID:        q.ID,
		Data:           res.Rows,
		Columns:        resultColumns(res.Columns),
		Insights:       insights,
		Visualizations: visualizations,
		ExecutionTime:  executionMs,
	}
	err = s.db.RunInTx(ctx, func(ctx context.Context) error {
		if err := stopped(s.repo.Complete(ctx, q.ID, executionMs, res.RowCount)); err != nil {
			return err
		}
		return s.results.Create(ctx, result)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Query completed",
		zap.String("query_id", q.ID.String()),
		zap.Int("rows", res.RowCount),
		zap.Int64("execution_ms", executionMs))
	return nil
}

func resultColumns(cols []datasource.ColumnInfo) []models.ResultColumn {
	out := make([]models.ResultColumn, len(cols))
	for i, c := range cols {
		out[i] = models.ResultColumn{Name: c.Name, Type: c.Type}
	}
	return out
}

func stopped(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return errQueryStopped
	}
	return nil
}
