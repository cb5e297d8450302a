package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
	"github.com/ekaya-inc/genbi-engine/pkg/database"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

// DataSourceRepository defines data access for data sources.
// Connection details are stored sealed; sealing is handled by the service layer.
type DataSourceRepository interface {
	Create(ctx context.Context, ds *models.DataSource, sealedDetails string) error

	// GetByID returns the data source and its sealed connection details.
	GetByID(ctx context.Context, id uuid.UUID) (*models.DataSource, string, error)

	// List returns one page of data sources, their sealed details and the total count.
	List(ctx context.Context, filter models.DataSourceFilter) ([]*models.DataSource, []string, int, error)

	// Update writes name, description and schedule. Status and connection
	// details belong to the connect task and Reconnect.
	Update(ctx context.Context, ds *models.DataSource) error

	// Reconnect stores new sealed connection details and moves the data
	// source back to connecting with no error.
	Reconnect(ctx context.Context, id uuid.UUID, sealedDetails string) error

	// MarkConnected moves a connecting data source to connected.
	// Returns false if the row is gone or no longer connecting.
	MarkConnected(ctx context.Context, id uuid.UUID, recordCount int64, at time.Time) (bool, error)

	// MarkConnectFailed moves a connecting data source to error.
	MarkConnectFailed(ctx context.Context, id uuid.UUID, message string) (bool, error)

	// RecordSync stamps lastSync and recordCount after a completed sync.
	RecordSync(ctx context.Context, id uuid.UUID, recordCount int64, at time.Time) error

	UpdateSchedule(ctx context.Context, id uuid.UUID, schedule *models.SyncSchedule) error

	// ListScheduled returns data sources with a schedule other than never.
	ListScheduled(ctx context.Context) ([]*models.DataSource, error)

	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	Delete(ctx context.Context, id uuid.UUID) error

	// FailConnecting marks every connecting data source as error. Used on startup.
	FailConnecting(ctx context.Context, message string) (int64, error)
}

type dataSourceRepository struct {
	db *database.DB
}

var _ DataSourceRepository = (*dataSourceRepository)(nil)

// NewDataSourceRepository creates a new data source repository.
func NewDataSourceRepository(db *database.DB) DataSourceRepository {
	return &dataSourceRepository{db: db}
}

const dataSourceColumns = `id, name, description, type, status, connection_details, last_sync,
	record_count, error, sync_schedule, created_by, created_at, updated_at`

func scanDataSource(row rowScanner) (*models.DataSource, string, error) {
	var (
		ds       models.DataSource
		id       string
		desc     sql.NullString
		sealed   string
		lastSync sql.NullTime
		errMsg   sql.NullString
		schedule sql.NullString
	)
	if err := row.Scan(&id, &ds.Name, &desc, &ds.Type, &ds.Status, &sealed, &lastSync,
		&ds.RecordCount, &errMsg, &schedule, &ds.CreatedBy, &ds.CreatedAt, &ds.UpdatedAt); err != nil {
		return nil, "", err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, "", fmt.Errorf("invalid data source id %q: %w", id, err)
	}
	ds.ID = parsed
	ds.Description = stringPtr(desc)
	ds.LastSync = timePtr(lastSync)
	ds.Error = stringPtr(errMsg)
	ds.CreatedAt = ds.CreatedAt.UTC()
	ds.UpdatedAt = ds.UpdatedAt.UTC()
	if schedule.Valid {
		ds.SyncSchedule = &models.SyncSchedule{}
		if err := fromJSONText(schedule, ds.SyncSchedule); err != nil {
			return nil, "", err
		}
	}
	return &ds, sealed, nil
}

func (r *dataSourceRepository) Create(ctx context.Context, ds *models.DataSource, sealedDetails string) error {
	if ds.ID == uuid.Nil {
		ds.ID = uuid.New()
	}
	now := time.Now().UTC()
	ds.CreatedAt = now
	ds.UpdatedAt = now

	schedule, err := jsonText(scheduleValue(ds.SyncSchedule))
	if err != nil {
		return err
	}

	_, err = r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO data_sources (`+dataSourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ds.ID.String(), ds.Name, nullString(ds.Description), ds.Type, ds.Status, sealedDetails,
		nullTime(ds.LastSync), ds.RecordCount, nullString(ds.Error), schedule, ds.CreatedBy,
		ds.CreatedAt, ds.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create data source: %w", err)
	}
	return nil
}

// scheduleValue keeps a nil pointer from being stored as JSON null.
func scheduleValue(s *models.SyncSchedule) any {
	if s == nil {
		return nil
	}
	return s
}

func (r *dataSourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DataSource, string, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx,
		`SELECT `+dataSourceColumns+` FROM data_sources WHERE id = ?`, id.String())

	ds, sealed, err := scanDataSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", apperrors.NotFoundf("Data source with ID %s not found", id)
		}
		return nil, "", fmt.Errorf("failed to get data source: %w", err)
	}
	return ds, sealed, nil
}

func (r *dataSourceRepository) List(ctx context.Context, filter models.DataSourceFilter) ([]*models.DataSource, []string, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.Search != "" {
		where = append(where, `name LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(filter.Search)+"%")
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM data_sources`+whereSQL, args...).Scan(&total); err != nil {
		return nil, nil, 0, fmt.Errorf("failed to count data sources: %w", err)
	}

	sortColumn, ok := models.DataSourceSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "name"
	}
	order := "ASC"
	if strings.EqualFold(filter.SortOrder, "desc") {
		order = "DESC"
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	query := `SELECT ` + dataSourceColumns + ` FROM data_sources` + whereSQL +
		fmt.Sprintf(` ORDER BY %s %s, id ASC LIMIT ? OFFSET ?`, sortColumn, order)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to list data sources: %w", err)
	}
	defer rows.Close()

	var (
		items  []*models.DataSource
		sealed []string
	)
	for rows.Next() {
		ds, s, err := scanDataSource(rows)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("failed to scan data source: %w", err)
		}
		items = append(items, ds)
		sealed = append(sealed, s)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, 0, fmt.Errorf("failed to iterate data sources: %w", err)
	}
	return items, sealed, total, nil
}

func (r *dataSourceRepository) Update(ctx context.Context, ds *models.DataSource) error {
	ds.UpdatedAt = time.Now().UTC()
	schedule, err := jsonText(scheduleValue(ds.SyncSchedule))
	if err != nil {
		return err
	}

	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE data_sources
		SET name = ?, description = ?, sync_schedule = ?, updated_at = ?
		WHERE id = ?`,
		ds.Name, nullString(ds.Description), schedule, ds.UpdatedAt, ds.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update data source: %w", err)
	}
	return r.requireRow(res, ds.ID)
}

func (r *dataSourceRepository) Reconnect(ctx context.Context, id uuid.UUID, sealedDetails string) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE data_sources
		SET connection_details = ?, status = ?, error = NULL, updated_at = ?
		WHERE id = ?`,
		sealedDetails, models.DataSourceStatusConnecting, time.Now().UTC(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to store connection details: %w", err)
	}
	return r.requireRow(res, id)
}

func (r *dataSourceRepository) requireRow(res sql.Result, id uuid.UUID) error {
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFoundf("Data source with ID %s not found", id)
	}
	return nil
}

func (r *dataSourceRepository) MarkConnected(ctx context.Context, id uuid.UUID, recordCount int64, at time.Time) (bool, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE data_sources
		SET status = 'connected', last_sync = ?, record_count = ?, error = NULL, updated_at = ?
		WHERE id = ? AND status = 'connecting'`,
		at.UTC(), recordCount, time.Now().UTC(), id.String(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark data source connected: %w", err)
	}
	return affected(res)
}

func (r *dataSourceRepository) MarkConnectFailed(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE data_sources
		SET status = 'error', error = ?, updated_at = ?
		WHERE id = ? AND status = 'connecting'`,
		message, time.Now().UTC(), id.String(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark data source failed: %w", err)
	}
	return affected(res)
}

func (r *dataSourceRepository) RecordSync(ctx context.Context, id uuid.UUID, recordCount int64, at time.Time) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE data_sources SET last_sync = ?, record_count = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), recordCount, time.Now().UTC(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to record sync: %w", err)
	}
	return nil
}

func (r *dataSourceRepository) UpdateSchedule(ctx context.Context, id uuid.UUID, schedule *models.SyncSchedule) error {
	value, err := jsonText(scheduleValue(schedule))
	if err != nil {
		return err
	}
	// updated_at is left alone: schedule bookkeeping is not a user edit.
	_, err = r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE data_sources SET sync_schedule = ? WHERE id = ?`, value, id.String())
	if err != nil {
		return fmt.Errorf("failed to update sync schedule: %w", err)
	}
	return nil
}

func (r *dataSourceRepository) ListScheduled(ctx context.Context) ([]*models.DataSource, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, `
		SELECT `+dataSourceColumns+` FROM data_sources
		WHERE sync_schedule IS NOT NULL AND json_extract(sync_schedule, '$.frequency') <> 'never'
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled data sources: %w", err)
	}
	defer rows.Close()

	var out []*models.DataSource
	for rows.Next() {
		ds, _, err := scanDataSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan data source: %w", err)
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func (r *dataSourceRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int
	err := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM data_sources WHERE id = ?`, id.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check data source: %w", err)
	}
	return n > 0, nil
}

func (r *dataSourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM data_sources WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete data source: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFoundf("Data source with ID %s not found", id)
	}
	return nil
}

func (r *dataSourceRepository) FailConnecting(ctx context.Context, message string) (int64, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE data_sources SET status = 'error', error = ?, updated_at = ?
		WHERE status = 'connecting'`, message, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to fail connecting data sources: %w", err)
	}
	return res.RowsAffected()
}
