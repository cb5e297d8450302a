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

// SyncRepository stores sync jobs. Every state change is a conditional update
// so that terminal states never revert and progress never decreases; the
// boolean results report whether the row actually changed.
type SyncRepository interface {
	Create(ctx context.Context, job *models.DataSourceSync) error

	// GetByID returns a job that belongs to the given data source.
	GetByID(ctx context.Context, dataSourceID, syncID uuid.UUID) (*models.DataSourceSync, error)

	// ListByDataSource returns the newest jobs first; limit <= 0 means all.
	ListByDataSource(ctx context.Context, dataSourceID uuid.UUID, limit int) ([]models.DataSourceSync, error)

	// HasActive reports whether a queued or in_progress job exists.
	HasActive(ctx context.Context, dataSourceID uuid.UUID) (bool, error)

	// Start moves a queued job to in_progress with progress 0.
	Start(ctx context.Context, syncID uuid.UUID, at time.Time) (bool, error)

	// SetTotals records the table count once the subset is resolved.
	SetTotals(ctx context.Context, syncID uuid.UUID, totalTables int) (bool, error)

	// UpdateProgress writes counters if the job is in_progress and progress does not decrease.
	UpdateProgress(ctx context.Context, syncID uuid.UUID, tablesProcessed, progress int, recordsProcessed int64) (bool, error)

	Complete(ctx context.Context, syncID uuid.UUID, tablesProcessed int, recordsProcessed int64, at time.Time) (bool, error)

	Fail(ctx context.Context, syncID uuid.UUID, message string, at time.Time) (bool, error)

	Cancel(ctx context.Context, syncID uuid.UUID, at time.Time) (bool, error)

	// FailActive fails every queued or in_progress job. Used on startup.
	FailActive(ctx context.Context, message string, at time.Time) (int64, error)
}

type syncRepository struct {
	db *database.DB
}

var _ SyncRepository = (*syncRepository)(nil)

// NewSyncRepository creates a new sync job repository.
func NewSyncRepository(db *database.DB) SyncRepository {
	return &syncRepository{db: db}
}

const syncColumns = `id, data_source_id, status, progress, full_sync, tables, tables_processed,
	total_tables, records_processed, start_time, end_time, estimated_completion_time, error,
	created_at, updated_at`

func scanSync(row rowScanner) (*models.DataSourceSync, error) {
	var (
		job             models.DataSourceSync
		id, dsID        string
		tables          sql.NullString
		start, end, eta sql.NullTime
		errMsg          sql.NullString
	)
	if err := row.Scan(&id, &dsID, &job.Status, &job.Progress, &job.FullSync, &tables, &job.TablesProcessed,
		&job.TotalTables, &job.RecordsProcessed, &start, &end, &eta, &errMsg, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	job.ID = uuid.MustParse(id)
	job.DataSourceID = uuid.MustParse(dsID)
	if err := fromJSONText(tables, &job.Tables); err != nil {
		return nil, err
	}
	job.StartTime = timePtr(start)
	job.EndTime = timePtr(end)
	job.EstimatedCompletionTime = timePtr(eta)
	job.Error = stringPtr(errMsg)
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return &job, nil
}

func (r *syncRepository) Create(ctx context.Context, job *models.DataSourceSync) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	var tables any
	if len(job.Tables) > 0 {
		tables = job.Tables
	}
	tablesText, err := jsonText(tables)
	if err != nil {
		return err
	}

	_, err = r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO data_source_syncs (`+syncColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID.String(), job.DataSourceID.String(), job.Status, job.Progress, job.FullSync, tablesText,
		job.TablesProcessed, job.TotalTables, job.RecordsProcessed, nullTime(job.StartTime), nullTime(job.EndTime),
		nullTime(job.EstimatedCompletionTime), nullString(job.Error), job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync job: %w", err)
	}
	return nil
}

func (r *syncRepository) GetByID(ctx context.Context, dataSourceID, syncID uuid.UUID) (*models.DataSourceSync, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx,
		`SELECT `+syncColumns+` FROM data_source_syncs WHERE id = ? AND data_source_id = ?`,
		syncID.String(), dataSourceID.String())

	job, err := scanSync(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("Sync job with ID %s not found for data source %s", syncID, dataSourceID)
		}
		return nil, fmt.Errorf("failed to get sync job: %w", err)
	}
	return job, nil
}

func (r *syncRepository) ListByDataSource(ctx context.Context, dataSourceID uuid.UUID, limit int) ([]models.DataSourceSync, error) {
	query := `SELECT ` + syncColumns + ` FROM data_source_syncs WHERE data_source_id = ?
		ORDER BY created_at DESC, rowid DESC`
	args := []any{dataSourceID.String()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync jobs: %w", err)
	}
	defer rows.Close()

	out := []models.DataSourceSync{}
	for rows.Next() {
		job, err := scanSync(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync job: %w", err)
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

func (r *syncRepository) HasActive(ctx context.Context, dataSourceID uuid.UUID) (bool, error) {
	var n int
	err := r.db.Conn(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM data_source_syncs
		WHERE data_source_id = ? AND status IN ('queued', 'in_progress')`, dataSourceID.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check active sync jobs: %w", err)
	}
	return n > 0, nil
}

func (r *syncRepository) exec(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to %s sync job: %w", op, err)
	}
	return affected(res)
}

func (r *syncRepository) Start(ctx context.Context, syncID uuid.UUID, at time.Time) (bool, error) {
	return r.exec(ctx, "start", `
		UPDATE data_source_syncs
		SET status = 'in_progress', start_time = ?, progress = 0, updated_at = ?
		WHERE id = ? AND status = 'queued'`,
		at.UTC(), time.Now().UTC(), syncID.String())
}

func (r *syncRepository) SetTotals(ctx context.Context, syncID uuid.UUID, totalTables int) (bool, error) {
	return r.exec(ctx, "initialize", `
		UPDATE data_source_syncs
		SET total_tables = ?, tables_processed = 0, records_processed = 0, updated_at = ?
		WHERE id = ? AND status = 'in_progress'`,
		totalTables, time.Now().UTC(), syncID.String())
}

func (r *syncRepository) UpdateProgress(ctx context.Context, syncID uuid.UUID, tablesProcessed, progress int, recordsProcessed int64) (bool, error) {
	return r.exec(ctx, "update", `
		UPDATE data_source_syncs
		SET tables_processed = ?, progress = ?, records_processed = ?, updated_at = ?
		WHERE id = ? AND status = 'in_progress' AND progress <= ?`,
		tablesProcessed, progress, recordsProcessed, time.Now().UTC(), syncID.String(), progress)
}

func (r *syncRepository) Complete(ctx context.Context, syncID uuid.UUID, tablesProcessed int, recordsProcessed int64, at time.Time) (bool, error) {
	return r.exec(ctx, "complete", `
		UPDATE data_source_syncs
		SET status = 'completed', progress = 100, tables_processed = ?, records_processed = ?,
		    end_time = ?, updated_at = ?
		WHERE id = ? AND status = 'in_progress'`,
		tablesProcessed, recordsProcessed, at.UTC(), time.Now().UTC(), syncID.String())
}

func (r *syncRepository) Fail(ctx context.Context, syncID uuid.UUID, message string, at time.Time) (bool, error) {
	return r.exec(ctx, "fail", `
		UPDATE data_source_syncs
		SET status = 'failed', error = ?, end_time = ?, updated_at = ?
		WHERE id = ? AND status IN ('queued', 'in_progress')`,
		message, at.UTC(), time.Now().UTC(), syncID.String())
}

func (r *syncRepository) Cancel(ctx context.Context, syncID uuid.UUID, at time.Time) (bool, error) {
	return r.exec(ctx, "cancel", `
		UPDATE data_source_syncs
		SET status = 'cancelled', end_time = ?, updated_at = ?
		WHERE id = ? AND status IN ('queued', 'in_progress')`,
		at.UTC(), time.Now().UTC(), syncID.String())
}

func (r *syncRepository) FailActive(ctx context.Context, message string, at time.Time) (int64, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE data_source_syncs
		SET status = 'failed', error = ?, end_time = ?, updated_at = ?
		WHERE status IN ('queued', 'in_progress')`,
		message, at.UTC(), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to fail active sync jobs: %w", err)
	}
	return res.RowsAffected()
}
