// Package file is the live connector for uploaded CSV, Excel and JSON files.
// The file is parsed once and served from an in-memory SQLite table named
// after the data source.
package file

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource/memtable"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
	"github.com/ekaya-inc/genbi-engine/pkg/tabular"
)

// ErrNoFile is returned when a file source has no uploaded file to read.
var ErrNoFile = errors.New("fileId is required for live file sources")

// Connector serves one uploaded file.
type Connector struct {
	store  *memtable.Store
	upload *models.UploadedFile
	rows   int64
}

// Open parses the upload referenced by details and loads it.
func Open(ctx context.Context, dsType models.DataSourceType, details models.ConnectionDetails, opts datasource.Options) (*Connector, error) {
	fc, ok := details.(*models.FileConnection)
	if !ok || fc.FileID == "" {
		return nil, ErrNoFile
	}
	if opts.Files == nil {
		return nil, fmt.Errorf("no file source configured")
	}

	upload, body, err := opts.Files.OpenUpload(ctx, fc.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", fc.FileID, err)
	}
	defer body.Close()

	if string(upload.Type) != string(dsType) {
		return nil, fmt.Errorf("file %s is %s, not %s", fc.FileID, upload.Type, dsType)
	}

	table, err := tabular.Parse(upload.Type, body, tabular.Options{
		Delimiter: tabular.DelimiterRune(fc.Delimiter),
		Sheet:     fc.Sheet,
		DataPath:  fc.DataPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", upload.OriginalName, err)
	}

	store, err := memtable.New(ctx)
	if err != nil {
		return nil, err
	}
	name := opts.Name
	if name == "" {
		name = strings.TrimSuffix(upload.OriginalName, filepath.Ext(upload.OriginalName))
	}
	if err := store.Load(ctx, name, table); err != nil {
		store.Close()
		return nil, err
	}

	return &Connector{store: store, upload: upload, rows: int64(len(table.Rows))}, nil
}

// TestConnection reports the file's format, size and row count.
func (c *Connector) TestConnection(ctx context.Context) (*datasource.ConnectionInfo, error) {
	return &datasource.ConnectionInfo{
		Message: "File validation successful",
		Details: map[string]any{
			"format": string(c.upload.Type),
			"size":   HumanSize(c.upload.Size),
			"rows":   c.rows,
		},
	}, nil
}

func (c *Connector) DiscoverSchema(ctx context.Context) (*datasource.DiscoveredSchema, error) {
	return c.store.Schema(), nil
}

func (c *Connector) CountTableRecords(ctx context.Context, table string) (int64, error) {
	return c.store.Count(ctx, table)
}

func (c *Connector) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
	return c.store.Query(ctx, sqlQuery, limit)
}

func (c *Connector) Close() error {
	return c.store.Close()
}

// HumanSize formats a byte count the way the connection test reports it.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

var (
	_ datasource.ConnectionTester = (*Connector)(nil)
	_ datasource.SchemaDiscoverer = (*Connector)(nil)
	_ datasource.QueryExecutor    = (*Connector)(nil)
)
