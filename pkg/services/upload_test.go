package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
	"github.com/ekaya-inc/genbi-engine/pkg/filestore"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

const customersCSV = `id,name,score,signup_date
1,Ada,9.5,2024-01-15
2,Grace,8.25,2024-02-01
3,Linus,7,2024-03-10
`

func newUploadService(t *testing.T, env *testEnv, maxSize int64) (UploadService, *filestore.LocalStore) {
	t.Helper()
	store, err := filestore.NewLocalStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return NewUploadService(env.uploadRepo, store, maxSize, zap.NewNop()), store
}

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		contentType string
		filename    string
		want        models.FileType
		ok          bool
	}{
		{"text/csv", "data.bin", models.FileTypeCSV, true},
		{"text/csv; charset=utf-8", "", models.FileTypeCSV, true},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "x", models.FileTypeExcel, true},
		{"application/octet-stream", "Report.XLSX", models.FileTypeExcel, true},
		{"", "events.json", models.FileTypeJSON, true},
		{"application/pdf", "manual.pdf", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.contentType+"|"+tt.filename, func(t *testing.T) {
			got, ok := DetectFileType(tt.contentType, tt.filename)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUploadService_UploadAndPreview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc, store := newUploadService(t, env, 10<<20)

	f, err := svc.Upload(ctx, &UploadInput{
		Filename:    "customers.csv",
		ContentType: "text/csv",
		Size:        int64(len(customersCSV)),
		Body:        strings.NewReader(customersCSV),
	})
	require.NoError(t, err)
	assert.Regexp(t, `^file-[0-9a-f]{16}$`, f.FileID)
	assert.Equal(t, "customers.csv", f.OriginalName)
	assert.Equal(t, models.FileTypeCSV, f.Type)
	assert.Equal(t, filestore.KindLocal, f.Storage)
	assert.Equal(t, fmt.Sprintf("%016x", xxh3.HashString(customersCSV)), f.Checksum)

	rc, err := store.Open(ctx, f.StorageKey)
	require.NoError(t, err)
	stored, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, customersCSV, string(stored))

	got, err := svc.Get(ctx, f.FileID)
	require.NoError(t, err)
	assert.Equal(t, f.Checksum, got.Checksum)

	preview, err := svc.Preview(ctx, f.FileID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, preview.TotalRows)
	require.Len(t, preview.Data, 2)
	require.Len(t, preview.Columns, 4)
	assert.Equal(t, models.ResultColumn{Name: "id", Type: "integer"}, preview.Columns[0])
	assert.Equal(t, "number", preview.Columns[2].Type)
	assert.EqualValues(t, 1, preview.Data[0]["id"])
	assert.Equal(t, "Grace", preview.Data[1]["name"])
}

func TestUploadService_Rejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc, _ := newUploadService(t, env, 1<<20)

	_, err := svc.Upload(ctx, &UploadInput{Filename: "big.csv", ContentType: "text/csv", Size: 2 << 20, Body: strings.NewReader("")})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "File exceeds the maximum size of 1 MB", apperrors.Message(err, ""))

	_, err = svc.Upload(ctx, &UploadInput{Filename: "notes.txt", ContentType: "text/plain", Size: 3, Body: strings.NewReader("abc")})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "Unsupported file type", apperrors.Message(err, ""))
}

func TestUploadService_PreviewErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc, _ := newUploadService(t, env, 1<<20)

	_, err := svc.Preview(ctx, "file-missing", 10)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	body := `{"meta": {"count": 0}}`
	f, err := svc.Upload(ctx, &UploadInput{Filename: "empty.json", ContentType: "application/json", Size: int64(len(body)), Body: strings.NewReader(body)})
	require.NoError(t, err)

	_, err = svc.Preview(ctx, f.FileID, 10)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Preview(ctx, f.FileID, -1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUploadService_OpenUploadFeedsFileSource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc, _ := newUploadService(t, env, 1<<20)

	f, err := svc.Upload(ctx, &UploadInput{Filename: "customers.csv", ContentType: "text/csv", Size: int64(len(customersCSV)), Body: strings.NewReader(customersCSV)})
	require.NoError(t, err)

	meta, rc, err := svc.OpenUpload(ctx, f.FileID)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, f.FileID, meta.FileID)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Len(t, data, len(customersCSV))
}
