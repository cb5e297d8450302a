package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
	"github.com/ekaya-inc/genbi-engine/pkg/database"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

// QueryResultRepository stores the immutable result of a query execution.
type QueryResultRepository interface {
	Create(ctx context.Context, result *models.QueryResult) error
	GetByQueryID(ctx context.Context, queryID uuid.UUID) (*models.QueryResult, error)
}

type queryResultRepository struct {
	db *database.DB
}

var _ QueryResultRepository = (*queryResultRepository)(nil)

// NewQueryResultRepository creates a new query result repository.
func NewQueryResultRepository(db *database.DB) QueryResultRepository {
	return &queryResultRepository{db: db}
}

func (r *queryResultRepository) Create(ctx context.Context, result *models.QueryResult) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	result.CreatedAt = time.Now().UTC()
	if result.Data == nil {
		result.Data = []map[string]any{}
	}
	if result.Columns == nil {
		result.Columns = []models.ResultColumn{}
	}
	if result.Insights == nil {
		result.Insights = []models.Insight{}
	}
	if result.Visualizations == nil {
		result.Visualizations = []models.VisualizationSuggestion{}
	}

	data, err := jsonText(result.Data)
	if err != nil {
		return err
	}
	columns, err := jsonText(result.Columns)
	if err != nil {
		return err
	}
	insights, err := jsonText(result.Insights)
	if err != nil {
		return err
	}
	visualizations, err := jsonText(result.Visualizations)
	if err != nil {
		return err
	}

	_, err = r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO query_results (id, query_id, data, columns, insights, visualizations, execution_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID.String(), result.QueryID.String(), data, columns, insights, visualizations,
		result.ExecutionTime, result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create query result: %w", err)
	}
	return nil
}

func (r *queryResultRepository) GetByQueryID(ctx context.Context, queryID uuid.UUID) (*models.QueryResult, error) {
	var (
		result                                  models.QueryResult
		id                                      string
		data, columns, insights, visualizations sql.NullString
	)
	err := r.db.Conn(ctx).QueryRowContext(ctx, `
		SELECT id, data, columns, insights, visualizations, execution_time, created_at
		FROM query_results WHERE query_id = ?`, queryID.String(),
	).Scan(&id, &data, &columns, &insights, &visualizations, &result.ExecutionTime, &result.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("Query results for query with ID %s not found", queryID)
		}
		return nil, fmt.Errorf("failed to get query result: %w", err)
	}

	result.ID = uuid.MustParse(id)
	result.QueryID = queryID
	result.CreatedAt = result.CreatedAt.UTC()
	result.Data = []map[string]any{}
	result.Columns = []models.ResultColumn{}
	result.Insights = []models.Insight{}
	result.Visualizations = []models.VisualizationSuggestion{}
	for _, col := range []struct {
		src  sql.NullString
		dest any
	}{
		{data, &result.Data},
		{columns, &result.Columns},
		{insights, &result.Insights},
		{visualizations, &result.Visualizations},
	} {
		if err := fromJSONText(col.src, col.dest); err != nil {
			return nil, err
		}
	}
	return &result, nil
}
