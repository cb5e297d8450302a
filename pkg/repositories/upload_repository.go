package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
	"github.com/ekaya-inc/genbi-engine/pkg/database"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

// UploadRepository is the durable registry of uploaded files.
type UploadRepository interface {
	Create(ctx context.Context, f *models.UploadedFile) error
	GetByID(ctx context.Context, fileID string) (*models.UploadedFile, error)
}

type uploadRepository struct {
	db *database.DB
}

var _ UploadRepository = (*uploadRepository)(nil)

// NewUploadRepository creates a new upload repository.
func NewUploadRepository(db *database.DB) UploadRepository {
	return &uploadRepository{db: db}
}

func (r *uploadRepository) Create(ctx context.Context, f *models.UploadedFile) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO uploaded_files
			(file_id, name, original_name, type, mime_type, size, checksum, storage, storage_key, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.FileID, f.Name, f.OriginalName, f.Type, f.MimeType, f.Size, f.Checksum, f.Storage, f.StorageKey,
		f.UploadedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to register uploaded file: %w", err)
	}
	return nil
}

func (r *uploadRepository) GetByID(ctx context.Context, fileID string) (*models.UploadedFile, error) {
	var f models.UploadedFile
	err := r.db.Conn(ctx).QueryRowContext(ctx, `
		SELECT file_id, name, original_name, type, mime_type, size, checksum, storage, storage_key, uploaded_at
		FROM uploaded_files WHERE file_id = ?`, fileID,
	).Scan(&f.FileID, &f.Name, &f.OriginalName, &f.Type, &f.MimeType, &f.Size, &f.Checksum, &f.Storage, &f.StorageKey, &f.UploadedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("File with ID %s not found", fileID)
		}
		return nil, fmt.Errorf("failed to get uploaded file: %w", err)
	}
	f.UploadedAt = f.UploadedAt.UTC()
	return &f, nil
}
