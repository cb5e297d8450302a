package file

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

type mockFiles struct {
	upload  *models.UploadedFile
	content string
	err     error
}

func (m *mockFiles) OpenUpload(ctx context.Context, fileID string) (*models.UploadedFile, io.ReadCloser, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.upload, io.NopCloser(strings.NewReader(m.content)), nil
}

func csvFiles() *mockFiles {
	return &mockFiles{
		upload: &models.UploadedFile{
			FileID:       "file-0123456789abcdef",
			OriginalName: "customers.csv",
			Type:         models.FileTypeCSV,
			Size:         2048,
		},
		content: "id,name,email\n1,Ada,ada@example.com\n2,Grace,grace@example.com\n",
	}
}

func TestOpen_CSV(t *testing.T) {
	ctx := context.Background()
	c, err := Open(ctx, models.DataSourceTypeCSV, &models.FileConnection{FileID: "file-0123456789abcdef"}, datasource.Options{
		Name:  "Customers",
		Files: csvFiles(),
	})
	require.NoError(t, err)
	defer c.Close()

	info, err := c.TestConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, "File validation successful", info.Message)
	assert.Equal(t, "2.0 KB", info.Details["size"])
	assert.Equal(t, int64(2), info.Details["rows"])

	schema, err := c.DiscoverSchema(ctx)
	require.NoError(t, err)
	require.Len(t, schema.Tables, 1)
	assert.Equal(t, "Customers", schema.Tables[0].TableName)
	assert.Equal(t, int64(2), schema.RecordCount)

	result, err := c.Query(ctx, `SELECT email FROM "Customers" WHERE id = 2`, 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.RowCount)
	assert.Equal(t, "grace@example.com", result.Rows[0]["email"])

	n, err := c.CountTableRecords(ctx, "Customers")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestOpen_TableNameFallsBackToFileName(t *testing.T) {
	c, err := Open(context.Background(), models.DataSourceTypeCSV, &models.FileConnection{FileID: "f"}, datasource.Options{Files: csvFiles()})
	require.NoError(t, err)
	defer c.Close()

	schema, err := c.DiscoverSchema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "customers", schema.Tables[0].TableName)
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, models.DataSourceTypeCSV, &models.FileConnection{}, datasource.Options{Files: csvFiles()})
	assert.True(t, errors.Is(err, ErrNoFile))

	_, err = Open(ctx, models.DataSourceTypeJSON, &models.FileConnection{FileID: "f"}, datasource.Options{Files: csvFiles()})
	assert.ErrorContains(t, err, "not json")

	_, err = Open(ctx, models.DataSourceTypeCSV, &models.FileConnection{FileID: "f"}, datasource.Options{Files: &mockFiles{err: errors.New("gone")}})
	assert.ErrorContains(t, err, "gone")
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", HumanSize(512))
	assert.Equal(t, "1.2 MB", HumanSize(1258291))
	assert.Equal(t, "1.0 GB", HumanSize(1<<30))
}
