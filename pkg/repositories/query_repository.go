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

// QueryRepository stores queries. Status writes are conditional on the
// current status, so a cancelled query is never completed or failed later.
type QueryRepository interface {
	Create(ctx context.Context, q *models.Query) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Query, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkRunning moves a pending query to running.
	MarkRunning(ctx context.Context, id uuid.UUID) (bool, error)

	// SetSQL stores the generated or literal SQL of a running query.
	SetSQL(ctx context.Context, id uuid.UUID, sqlText string) (bool, error)

	// Complete moves a running query to completed.
	Complete(ctx context.Context, id uuid.UUID, executionTimeMs int64, rowCount int) (bool, error)

	// Fail moves a pending or running query to failed.
	Fail(ctx context.Context, id uuid.UUID, message string) (bool, error)

	// Cancel moves a pending or running query to cancelled.
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)

	// Save names a completed query and flags it saved.
	Save(ctx context.Context, id uuid.UUID, name string, description *string) (bool, error)

	ListRecent(ctx context.Context, limit int) ([]*models.Query, error)
	ListSaved(ctx context.Context, limit int) ([]*models.Query, error)

	// FailActive fails every pending or running query. Used on startup.
	FailActive(ctx context.Context, message string) (int64, error)
}

type queryRepository struct {
	db *database.DB
}

var _ QueryRepository = (*queryRepository)(nil)

// NewQueryRepository creates a new query repository.
func NewQueryRepository(db *database.DB) QueryRepository {
	return &queryRepository{db: db}
}

const queryColumns = `id, text, type, sql, status, data_source_id, error, is_saved, name, description,
	execution_time, row_count, created_by, created_at, updated_at`

func scanQuery(row rowScanner) (*models.Query, error) {
	var (
		q                  models.Query
		id, dsID           string
		sqlText, errMsg    sql.NullString
		name, desc         sql.NullString
		execTime, rowCount sql.NullInt64
	)
	if err := row.Scan(&id, &q.Text, &q.Type, &sqlText, &q.Status, &dsID, &errMsg, &q.IsSaved, &name, &desc,
		&execTime, &rowCount, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	q.ID = uuid.MustParse(id)
	q.DataSourceID = uuid.MustParse(dsID)
	q.SQL = stringPtr(sqlText)
	q.Error = stringPtr(errMsg)
	q.Name = stringPtr(name)
	q.Description = stringPtr(desc)
	q.ExecutionTime = int64Ptr(execTime)
	if rowCount.Valid {
		n := int(rowCount.Int64)
		q.RowCount = &n
	}
	q.CreatedAt = q.CreatedAt.UTC()
	q.UpdatedAt = q.UpdatedAt.UTC()
	return &q, nil
}

func (r *queryRepository) Create(ctx context.Context, q *models.Query) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	now := time.Now().UTC()
	q.CreatedAt = now
	q.UpdatedAt = now

	var rowCount sql.NullInt64
	if q.RowCount != nil {
		rowCount = sql.NullInt64{Int64: int64(*q.RowCount), Valid: true}
	}

	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO queries (`+queryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID.String(), q.Text, q.Type, nullString(q.SQL), q.Status, q.DataSourceID.String(), nullString(q.Error),
		q.IsSaved, nullString(q.Name), nullString(q.Description), nullInt64(q.ExecutionTime), rowCount,
		q.CreatedBy, q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create query: %w", err)
	}
	return nil
}

func (r *queryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Query, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT `+queryColumns+` FROM queries WHERE id = ?`, id.String())
	q, err := scanQuery(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("Query with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get query: %w", err)
	}
	return q, nil
}

func (r *queryRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int
	if err := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM queries WHERE id = ?`, id.String()).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check query: %w", err)
	}
	return n > 0, nil
}

func (r *queryRepository) exec(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to %s query: %w", op, err)
	}
	return affected(res)
}

func (r *queryRepository) MarkRunning(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exec(ctx, "start", `
		UPDATE queries SET status = 'running', updated_at = ?
		WHERE id = ? AND status = 'pending'`, time.Now().UTC(), id.String())
}

func (r *queryRepository) SetSQL(ctx context.Context, id uuid.UUID, sqlText string) (bool, error) {
	return r.exec(ctx, "update", `
		UPDATE queries SET sql = ?, updated_at = ?
		WHERE id = ? AND status = 'running'`, sqlText, time.Now().UTC(), id.String())
}

func (r *queryRepository) Complete(ctx context.Context, id uuid.UUID, executionTimeMs int64, rowCount int) (bool, error) {
	return r.exec(ctx, "complete", `
		UPDATE queries SET status = 'completed', execution_time = ?, row_count = ?, error = NULL, updated_at = ?
		WHERE id = ? AND status = 'running'`, executionTimeMs, rowCount, time.Now().UTC(), id.String())
}

func (r *queryRepository) Fail(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	return r.exec(ctx, "fail", `
		UPDATE queries SET status = 'failed', error = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'running')`, message, time.Now().UTC(), id.String())
}

func (r *queryRepository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exec(ctx, "cancel", `
		UPDATE queries SET status = 'cancelled', updated_at = ?
		WHERE id = ? AND status IN ('pending', 'running')`, time.Now().UTC(), id.String())
}

func (r *queryRepository) Save(ctx context.Context, id uuid.UUID, name string, description *string) (bool, error) {
	return r.exec(ctx, "save", `
		UPDATE queries SET is_saved = 1, name = ?, description = ?, updated_at = ?
		WHERE id = ? AND status = 'completed'`, name, nullString(description), time.Now().UTC(), id.String())
}

func (r *queryRepository) list(ctx context.Context, where string, limit int) ([]*models.Query, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx,
		`SELECT `+queryColumns+` FROM queries `+where+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	out := []*models.Query{}
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *queryRepository) ListRecent(ctx context.Context, limit int) ([]*models.Query, error) {
	return r.list(ctx, "", limit)
}

func (r *queryRepository) ListSaved(ctx context.Context, limit int) ([]*models.Query, error) {
	return r.list(ctx, "WHERE is_saved = 1", limit)
}

func (r *queryRepository) FailActive(ctx context.Context, message string) (int64, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE queries SET status = 'failed', error = ?, updated_at = ?
		WHERE status IN ('pending', 'running')`, message, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to fail active queries: %w", err)
	}
	return res.RowsAffected()
}
