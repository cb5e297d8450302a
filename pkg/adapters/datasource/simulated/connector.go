// Package simulated provides connectors that answer with canned schemas,
// record counts and query results after configurable delays. They are the
// default for every data source type.
package simulated

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

// Connector implements every connector capability for one data source.
type Connector struct {
	dsType  models.DataSourceType
	details models.ConnectionDetails
	opts    datasource.Options
}

// New creates a simulated connector.
func New(dsType models.DataSourceType, details models.ConnectionDetails, opts datasource.Options) *Connector {
	return &Connector{dsType: dsType, details: details, opts: opts}
}

// wait sleeps for d unless ctx ends first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// hasFile reports whether a file-type source points at an uploaded file.
func (c *Connector) hasFile() bool {
	if !c.dsType.IsFile() {
		return false
	}
	fc, ok := c.details.(*models.FileConnection)
	return ok && fc.FileID != ""
}

// TestConnection returns the canned probe result for the type.
func (c *Connector) TestConnection(ctx context.Context) (*datasource.ConnectionInfo, error) {
	if err := wait(ctx, c.opts.Delays.Probe); err != nil {
		return nil, err
	}

	switch c.dsType {
	case models.DataSourceTypeCSV, models.DataSourceTypeExcel, models.DataSourceTypeJSON:
		return &datasource.ConnectionInfo{
			Message: "File validation successful",
			Details: map[string]any{"format": string(c.dsType), "size": "1.2 MB", "rows": fileRecordCount},
		}, nil
	case models.DataSourceTypeAPI:
		return &datasource.ConnectionInfo{
			Message: "API connection successful",
			Latency: 200 * time.Millisecond,
			Details: map[string]any{"latency": 200, "endpoints": []string{"data", "metadata", "schema"}},
		}, nil
	}

	probe, ok := probes[c.dsType]
	if !ok {
		return nil, datasource.ErrUnsupportedType
	}
	return &datasource.ConnectionInfo{
		Message: "Connection successful",
		Latency: time.Duration(probe.latency) * time.Millisecond,
		Version: probe.version,
		Details: map[string]any{"latency": probe.latency, "version": probe.version},
	}, nil
}

type probe struct {
	latency int
	version string
}

var probes = map[models.DataSourceType]probe{
	models.DataSourceTypePostgreSQL: {120, "PostgreSQL 13.4"},
	models.DataSourceTypeMySQL:      {110, "MySQL 8.0.26"},
	models.DataSourceTypeMSSQL:      {130, "Microsoft SQL Server 2019"},
	models.DataSourceTypeSQLite:     {50, "SQLite 3.36.0"},
	models.DataSourceTypeMongoDB:    {150, "MongoDB 5.0.3"},
}

// DiscoverSchema returns the canned schema. Files with an uploaded file take
// the short file path; everything else takes the database path.
func (c *Connector) DiscoverSchema(ctx context.Context) (*datasource.DiscoveredSchema, error) {
	delay, count := c.opts.Delays.Connect, recordCount(c.dsType)
	if c.hasFile() {
		delay, count = c.opts.Delays.File, fileRecordCount
	}
	if err := wait(ctx, delay); err != nil {
		return nil, err
	}

	var schema *datasource.DiscoveredSchema
	switch {
	case c.dsType.IsRelational():
		schema = relationalSchema()
	case c.dsType == models.DataSourceTypeMongoDB:
		schema = documentSchema()
	case c.dsType.IsFile():
		schema = fileSchema(c.dsType, c.opts.Name, count)
	case c.dsType == models.DataSourceTypeAPI:
		schema = apiSchema()
	default:
		return nil, datasource.ErrUnsupportedType
	}
	schema.RecordCount = count
	return schema, nil
}

// CountTableRecords returns a random increment in [1000, 10999].
func (c *Connector) CountTableRecords(ctx context.Context, _ string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return 1000 + rand.Int64N(10000), nil
}

// Query returns the canned campaign result regardless of the SQL.
func (c *Connector) Query(ctx context.Context, _ string, limit int) (*datasource.QueryExecutionResult, error) {
	if err := wait(ctx, c.opts.Delays.Query); err != nil {
		return nil, err
	}
	result := campaignResult()
	if n := datasource.EffectiveLimit(limit); n < len(result.Rows) {
		result.Rows = result.Rows[:n]
		result.RowCount = n
	}
	return result, nil
}

// Close is a no-op.
func (c *Connector) Close() error { return nil }

var (
	_ datasource.ConnectionTester = (*Connector)(nil)
	_ datasource.SchemaDiscoverer = (*Connector)(nil)
	_ datasource.QueryExecutor    = (*Connector)(nil)
)
