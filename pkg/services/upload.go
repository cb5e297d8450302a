package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
	"github.com/ekaya-inc/genbi-engine/pkg/filestore"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
	"github.com/ekaya-inc/genbi-engine/pkg/repositories"
	"github.com/ekaya-inc/genbi-engine/pkg/tabular"
)

const (
	defaultPreviewRows = 10
	maxPreviewRows     = 100
)

// UploadInput is one uploaded file as received from a multipart form.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadService stores uploaded data files and previews them.
// It is also the file source of the live file connector.
type UploadService interface {
	datasource.FileSource

	Upload(ctx context.Context, in *UploadInput) (*models.UploadedFile, error)
	Get(ctx context.Context, fileID string) (*models.UploadedFile, error)

	// Preview parses the file and returns its first rows.
	Preview(ctx context.Context, fileID string, rows int) (*models.FilePreview, error)
}

type uploadService struct {
	repo    repositories.UploadRepository
	store   filestore.Store
	maxSize int64
	logger  *zap.Logger
}

// NewUploadService creates the upload service. maxSize is in bytes.
func NewUploadService(repo repositories.UploadRepository, store filestore.Store, maxSize int64, logger *zap.Logger) UploadService {
	return &uploadService{repo: repo, store: store, maxSize: maxSize, logger: logger.Named("uploads")}
}

var _ UploadService = (*uploadService)(nil)

var mimeFileTypes = map[string]models.FileType{
	"text/csv":                 models.FileTypeCSV,
	"application/csv":          models.FileTypeCSV,
	"application/vnd.ms-excel": models.FileTypeExcel,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": models.FileTypeExcel,
	"application/json": models.FileTypeJSON,
}

var extFileTypes = map[string]models.FileType{
	".csv":  models.FileTypeCSV,
	".xls":  models.FileTypeExcel,
	".xlsx": models.FileTypeExcel,
	".json": models.FileTypeJSON,
}

// DetectFileType picks the file type from the MIME type, falling back to
// the file extension.
func DetectFileType(contentType, filename string) (models.FileType, bool) {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if t, ok := mimeFileTypes[strings.ToLower(mediaType)]; ok {
			return t, true
		}
	}
	t, ok := extFileTypes[strings.ToLower(filepath.Ext(filename))]
	return t, ok
}

// newFileID returns "file-" followed by 16 hex characters.
func newFileID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate file id: %w", err)
	}
	return "file-" + hex.EncodeToString(b), nil
}

func (s *uploadService) Upload(ctx context.Context, in *UploadInput) (*models.UploadedFile, error) {
	if in.Size > s.maxSize {
		return nil, apperrors.Validationf("File exceeds the maximum size of %d MB", s.maxSize>>20)
	}
	fileType, ok := DetectFileType(in.ContentType, in.Filename)
	if !ok {
		return nil, apperrors.Validationf("Unsupported file type")
	}

	fileID, err := newFileID()
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(in.Filename))
	if ext == "" {
		ext = "." + string(fileType)
	}
	key := fileID + ext

	hasher := xxh3.New()
	if err := s.store.Put(ctx, key, io.TeeReader(in.Body, hasher), in.Size, in.ContentType); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	f := &models.UploadedFile{
		FileID:       fileID,
		Name:         key,
		OriginalName: filepath.Base(in.Filename),
		Type:         fileType,
		MimeType:     in.ContentType,
		Size:         in.Size,
		Checksum:     fmt.Sprintf("%016x", hasher.Sum64()),
		Storage:      s.store.Kind(),
		StorageKey:   key,
		UploadedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, f); err != nil {
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.logger.Warn("Failed to remove orphaned upload", zap.String("key", key), zap.Error(derr))
		}
		return nil, err
	}

	s.logger.Info("File uploaded",
		zap.String("file_id", fileID),
		zap.String("type", string(fileType)),
		zap.Int64("size", f.Size),
		zap.String("storage", f.Storage))
	return f, nil
}

func (s *uploadService) Get(ctx context.Context, fileID string) (*models.UploadedFile, error) {
	return s.repo.GetByID(ctx, fileID)
}

// OpenUpload implements datasource.FileSource.
func (s *uploadService) OpenUpload(ctx context.Context, fileID string) (*models.UploadedFile, io.ReadCloser, error) {
	f, err := s.repo.GetByID(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.store.Open(ctx, f.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open stored file %s: %w", fileID, err)
	}
	return f, body, nil
}

func (s *uploadService) Preview(ctx context.Context, fileID string, rows int) (*models.FilePreview, error) {
	if rows < 0 {
		return nil, apperrors.Validationf("rows must be between 1 and %d", maxPreviewRows)
	}
	rows = clampLimit(rows, defaultPreviewRows, maxPreviewRows)

	f, body, err := s.OpenUpload(ctx, fileID)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	table, err := tabular.Parse(f.Type, body, tabular.Options{})
	if err != nil {
		return nil, apperrors.Validationf("Failed to parse %s: %v", f.OriginalName, err)
	}

	columns := make([]models.ResultColumn, len(table.Columns))
	for i, c := range table.Columns {
		columns[i] = models.ResultColumn{Name: c.Name, Type: c.Type}
	}
	return &models.FilePreview{
		FileID:    f.FileID,
		Name:      f.OriginalName,
		Type:      f.Type,
		Columns:   columns,
		Data:      table.Records(rows),
		TotalRows: len(table.Rows),
	}, nil
}
