package datasource

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupportedType is returned by the factory when no connector is
// registered for a data source type.
var ErrUnsupportedType = errors.New("unsupported data source type")

// ConnectionTester probes a data source.
// Each implementation owns its connection and must be closed when done.
type ConnectionTester interface {
	// TestConnection verifies the source is reachable and describes it.
	TestConnection(ctx context.Context) (*ConnectionInfo, error)

	// Close releases the connection.
	Close() error
}

// ConnectionInfo is the outcome of a successful probe.
type ConnectionInfo struct {
	Message string
	Latency time.Duration
	Version string
	// Details is merged into the connection test response.
	Details map[string]any
}

// SchemaDiscoverer introspects tables, columns and relationships.
// Each implementation owns its connection and must be closed when done.
type SchemaDiscoverer interface {
	// DiscoverSchema returns the full schema and total record count.
	DiscoverSchema(ctx context.Context) (*DiscoveredSchema, error)

	// CountTableRecords returns the number of records in one table.
	CountTableRecords(ctx context.Context, table string) (int64, error)

	// Close releases the connection.
	Close() error
}

// MaxQueryLimit is the hard cap on rows returned by Query.
const MaxQueryLimit = 1000

// QueryExecutor runs read-only SQL against a data source.
// Each implementation owns its connection and must be closed when done.
type QueryExecutor interface {
	// Query runs a SELECT statement and returns bounded results.
	//   - limit <= 0: uses MaxQueryLimit
	//   - limit > MaxQueryLimit: capped to MaxQueryLimit
	Query(ctx context.Context, sqlQuery string, limit int) (*QueryExecutionResult, error)

	// Close releases any resources held by the executor.
	Close() error
}

// EffectiveLimit applies the MaxQueryLimit rules to a requested limit.
func EffectiveLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}

// ColumnInfo describes a result column.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryExecutionResult holds the results from executing a query.
type QueryExecutionResult struct {
	Columns  []ColumnInfo     `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"rowCount"`
	// Notes are observations the connector can make about the result
	// without an LLM. They back insights when none are generated.
	Notes []string `json:"notes,omitempty"`
}
