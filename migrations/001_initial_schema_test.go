package migrations_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/genbi-engine/pkg/testhelpers"
)

func Test_001_TablesExist(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	ctx := context.Background()

	for _, table := range []string{
		"data_sources", "data_source_tables", "data_source_columns", "data_source_relationships",
		"data_source_syncs", "queries", "query_results", "dashboards", "dashboard_widgets", "uploaded_files",
	} {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func Test_001_SavedRequiresCompleted(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	dsID := uuid.NewString()
	_, err := db.ExecContext(ctx, `INSERT INTO data_sources (id, name, type, created_at, updated_at) VALUES (?, 'ds', 'postgresql', ?, ?)`, dsID, now, now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO queries (id, text, status, data_source_id, is_saved, created_at, updated_at) VALUES (?, 'q', 'running', ?, 1, ?, ?)`,
		uuid.NewString(), dsID, now, now)
	assert.Error(t, err, "a running query cannot be saved")

	_, err = db.ExecContext(ctx, `INSERT INTO queries (id, text, status, data_source_id, is_saved, created_at, updated_at) VALUES (?, 'q', 'completed', ?, 1, ?, ?)`,
		uuid.NewString(), dsID, now, now)
	assert.NoError(t, err)
}

func Test_001_DeleteCascades(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	dsID, tableID := uuid.NewString(), uuid.NewString()
	_, err := db.ExecContext(ctx, `INSERT INTO data_sources (id, name, type, created_at, updated_at) VALUES (?, 'ds', 'sqlite', ?, ?)`, dsID, now, now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO data_source_tables (id, data_source_id, name) VALUES (?, ?, 'campaigns')`, tableID, dsID)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO data_source_columns (id, table_id, name, type) VALUES (?, ?, 'id', 'integer')`, uuid.NewString(), tableID)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `DELETE FROM data_sources WHERE id = ?`, dsID)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM data_source_columns`).Scan(&n))
	assert.Equal(t, 0, n)
}
