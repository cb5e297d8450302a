package memtable

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/genbi-engine/pkg/tabular"
)

func loadCampaigns(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	table, err := tabular.ParseCSV(strings.NewReader("id,name,spend\n1,Campaign 1,1500\n2,Campaign 2,1200.5\n3,Campaign 3,2500\n"), 0)
	require.NoError(t, err)

	store, err := New(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Load(ctx, "Campaign Export", table))
	return store
}

func TestLoad_Schema(t *testing.T) {
	store := loadCampaigns(t)

	schema := store.Schema()
	require.Len(t, schema.Tables, 1)
	assert.Equal(t, "Campaign Export", schema.Tables[0].TableName)
	assert.Equal(t, int64(3), schema.Tables[0].RowCount)
	assert.Equal(t, int64(3), schema.RecordCount)
	assert.Equal(t, "number", schema.Tables[0].Columns[2].DataType)
}

func TestQuery_Bounded(t *testing.T) {
	store := loadCampaigns(t)

	result, err := store.Query(context.Background(), `SELECT name, spend FROM "Campaign Export" ORDER BY spend DESC`, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowCount)
	assert.Equal(t, "Campaign 3", result.Rows[0]["name"])
	assert.Equal(t, "name", result.Columns[0].Name)
}

func TestCount(t *testing.T) {
	store := loadCampaigns(t)

	n, err := store.Count(context.Background(), "Campaign Export")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = store.Count(context.Background(), "missing")
	assert.Error(t, err)
}

func TestLoad_NoColumns(t *testing.T) {
	store, err := New(context.Background())
	require.NoError(t, err)
	defer store.Close()

	err = store.Load(context.Background(), "empty", &tabular.Table{})
	assert.Error(t, err)
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"a""b"`, QuoteIdentifier(`a"b`))
}
