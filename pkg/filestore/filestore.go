// Package filestore keeps uploaded file content in a local directory or an
// S3-compatible bucket.
package filestore

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/config"
)

// Storage kinds recorded on uploaded files.
const (
	KindLocal = "local"
	KindS3    = "s3"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("file not found in store")

// Store is a flat key/blob store.
type Store interface {
	Kind() string
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New returns an S3 store when a bucket is configured and a local store
// rooted at cfg.Dir otherwise.
func New(cfg *config.UploadsConfig, logger *zap.Logger) (Store, error) {
	if cfg.S3Bucket != "" {
		return NewS3Store(cfg, logger)
	}
	return NewLocalStore(cfg.Dir, logger)
}
