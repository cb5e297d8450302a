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

// DashboardRepository stores dashboards and their widgets.
// Multi-step changes are wrapped by the caller with database.DB.RunInTx.
type DashboardRepository interface {
	// List returns dashboards newest updatedAt first, widgets included.
	List(ctx context.Context) ([]*models.Dashboard, error)

	// GetByID returns a dashboard with widgets ordered by position.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dashboard, error)

	Create(ctx context.Context, d *models.Dashboard) error
	Update(ctx context.Context, d *models.Dashboard) error
	Delete(ctx context.Context, id uuid.UUID) error

	// ReplaceWidgets deletes all widgets of a dashboard and inserts the given
	// ones with fresh ids.
	ReplaceWidgets(ctx context.Context, dashboardID uuid.UUID, widgets []models.Widget) ([]models.Widget, error)
}

type dashboardRepository struct {
	db *database.DB
}

var _ DashboardRepository = (*dashboardRepository)(nil)

// NewDashboardRepository creates a new dashboard repository.
func NewDashboardRepository(db *database.DB) DashboardRepository {
	return &dashboardRepository{db: db}
}

const dashboardColumns = `id, name, description, layout, created_by, created_at, updated_at`

func scanDashboard(row rowScanner) (*models.Dashboard, error) {
	var (
		d      models.Dashboard
		id     string
		desc   sql.NullString
		layout sql.NullString
	)
	if err := row.Scan(&id, &d.Name, &desc, &layout, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.ID = uuid.MustParse(id)
	d.Description = stringPtr(desc)
	if err := fromJSONText(layout, &d.Layout); err != nil {
		return nil, err
	}
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	d.Widgets = []models.Widget{}
	return &d, nil
}

func (r *dashboardRepository) List(ctx context.Context) ([]*models.Dashboard, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx,
		`SELECT `+dashboardColumns+` FROM dashboards ORDER BY updated_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}

	out := []*models.Dashboard{}
	index := map[uuid.UUID]*models.Dashboard{}
	for rows.Next() {
		d, err := scanDashboard(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan dashboard: %w", err)
		}
		out = append(out, d)
		index[d.ID] = d
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dashboards: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	widgets, err := r.listWidgets(ctx, "", nil)
	if err != nil {
		return nil, err
	}
	for _, w := range widgets {
		if d, ok := index[w.DashboardID]; ok {
			d.Widgets = append(d.Widgets, w)
		}
	}
	return out, nil
}

func (r *dashboardRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dashboard, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT `+dashboardColumns+` FROM dashboards WHERE id = ?`, id.String())
	d, err := scanDashboard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("Dashboard with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get dashboard: %w", err)
	}

	widgets, err := r.listWidgets(ctx, "WHERE dashboard_id = ?", []any{id.String()})
	if err != nil {
		return nil, err
	}
	d.Widgets = widgets
	return d, nil
}

func (r *dashboardRepository) listWidgets(ctx context.Context, where string, args []any) ([]models.Widget, error) {
	// widgets without a position sort last
	rows, err := r.db.Conn(ctx).QueryContext(ctx, `
		SELECT id, dashboard_id, title, type, query_id, config, pos_x, pos_y, pos_w, pos_h, created_at, updated_at
		FROM dashboard_widgets `+where+`
		ORDER BY dashboard_id, pos_y IS NULL, pos_y, pos_x, rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list widgets: %w", err)
	}
	defer rows.Close()

	out := []models.Widget{}
	for rows.Next() {
		var (
			w           models.Widget
			id, dashID  string
			queryID     sql.NullString
			config      sql.NullString
			x, y, wd, h sql.NullInt64
		)
		if err := rows.Scan(&id, &dashID, &w.Title, &w.Type, &queryID, &config, &x, &y, &wd, &h, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan widget: %w", err)
		}
		w.ID = uuid.MustParse(id)
		w.DashboardID = uuid.MustParse(dashID)
		if queryID.Valid {
			qid, err := uuid.Parse(queryID.String)
			if err == nil {
				w.QueryID = &qid
			}
		}
		if err := fromJSONText(config, &w.Config); err != nil {
			return nil, err
		}
		if x.Valid && y.Valid && wd.Valid && h.Valid {
			w.Position = &models.WidgetPosition{X: int(x.Int64), Y: int(y.Int64), W: int(wd.Int64), H: int(h.Int64)}
		}
		w.CreatedAt = w.CreatedAt.UTC()
		w.UpdatedAt = w.UpdatedAt.UTC()
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *dashboardRepository) Create(ctx context.Context, d *models.Dashboard) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	layout, err := jsonText(mapValue(d.Layout))
	if err != nil {
		return err
	}
	_, err = r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO dashboards (`+dashboardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID.String(), d.Name, nullString(d.Description), layout, d.CreatedBy, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dashboard: %w", err)
	}
	return nil
}

func mapValue(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}

func (r *dashboardRepository) Update(ctx context.Context, d *models.Dashboard) error {
	d.UpdatedAt = time.Now().UTC()
	layout, err := jsonText(mapValue(d.Layout))
	if err != nil {
		return err
	}
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE dashboards SET name = ?, description = ?, layout = ?, updated_at = ? WHERE id = ?`,
		d.Name, nullString(d.Description), layout, d.UpdatedAt, d.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update dashboard: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFoundf("Dashboard with ID %s not found", d.ID)
	}
	return nil
}

func (r *dashboardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM dashboards WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete dashboard: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFoundf("Dashboard with ID %s not found", id)
	}
	return nil
}

func (r *dashboardRepository) ReplaceWidgets(ctx context.Context, dashboardID uuid.UUID, widgets []models.Widget) ([]models.Widget, error) {
	conn := r.db.Conn(ctx)
	if _, err := conn.ExecContext(ctx, `DELETE FROM dashboard_widgets WHERE dashboard_id = ?`, dashboardID.String()); err != nil {
		return nil, fmt.Errorf("failed to clear widgets: %w", err)
	}

	now := time.Now().UTC()
	out := make([]models.Widget, 0, len(widgets))
	for _, w := range widgets {
		w.ID = uuid.New()
		w.DashboardID = dashboardID
		w.CreatedAt = now
		w.UpdatedAt = now
		if w.Type == "" {
			w.Type = models.WidgetTypeChart
		}

		var queryID sql.NullString
		if w.QueryID != nil {
			queryID = sql.NullString{String: w.QueryID.String(), Valid: true}
		}
		config, err := jsonText(mapValue(w.Config))
		if err != nil {
			return nil, err
		}
		var x, y, wd, h sql.NullInt64
		if p := w.Position; p != nil {
			x = sql.NullInt64{Int64: int64(p.X), Valid: true}
			y = sql.NullInt64{Int64: int64(p.Y), Valid: true}
			wd = sql.NullInt64{Int64: int64(p.W), Valid: true}
			h = sql.NullInt64{Int64: int64(p.H), Valid: true}
		}

		if _, err := conn.ExecContext(ctx, `
			INSERT INTO dashboard_widgets
				(id, dashboard_id, title, type, query_id, config, pos_x, pos_y, pos_w, pos_h, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			w.ID.String(), dashboardID.String(), w.Title, w.Type, queryID, config, x, y, wd, h, now, now,
		); err != nil {
			return nil, fmt.Errorf("failed to insert widget %q: %w", w.Title, err)
		}
		out = append(out, w)
	}
	return out, nil
}
