// Package sqlite is the live connector for SQLite database files.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource/memtable"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

// Connector opens a SQLite file read-only.
type Connector struct {
	path string
	db   *sql.DB
}

// buildDSN opens the file read-only so queries can never modify it.
func buildDSN(path string) string {
	q := url.Values{}
	q.Set("mode", "ro")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}

// Open opens the database file named by details.
func Open(ctx context.Context, details models.ConnectionDetails) (*Connector, error) {
	cfg, ok := details.(*models.SQLiteConnection)
	if !ok || cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}
	if _, err := os.Stat(cfg.Database); err != nil {
		return nil, fmt.Errorf("database file: %w", err)
	}

	db, err := sql.Open("sqlite", buildDSN(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(2)
	return &Connector{path: cfg.Database, db: db}, nil
}

// TestConnection pings the file and reports the library version.
func (c *Connector) TestConnection(ctx context.Context) (*datasource.ConnectionInfo, error) {
	start := time.Now()
	var version string
	if err := c.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return nil, fmt.Errorf("test query failed: %w", err)
	}
	latency := time.Since(start)
	version = "SQLite " + version

	return &datasource.ConnectionInfo{
		Message: "Connection successful",
		Latency: latency,
		Version: version,
		Details: map[string]any{"latency": latency.Milliseconds(), "version": version},
	}, nil
}

// DiscoverSchema reads tables from sqlite_master, columns from
// pragma_table_info and relationships from pragma_foreign_key_list.
func (c *Connector) DiscoverSchema(ctx context.Context) (*datasource.DiscoveredSchema, error) {
	names, err := c.tableNames(ctx)
	if err != nil {
		return nil, err
	}

	schema := &datasource.DiscoveredSchema{}
	for _, name := range names {
		cols, err := c.columns(ctx, name)
		if err != nil {
			return nil, err
		}
		count, err := c.CountTableRecords(ctx, name)
		if err != nil {
			return nil, err
		}
		fks, err := c.foreignKeys(ctx, name)
		if err != nil {
			return nil, err
		}
		schema.Tables = append(schema.Tables, datasource.TableMetadata{TableName: name, RowCount: count, Columns: cols})
		schema.Relationships = append(schema.Relationships, fks...)
	}
	schema.RecordCount = schema.TotalRows()
	return schema, nil
}

func (c *Connector) tableNames(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return names, nil
}

func (c *Connector) columns(ctx context.Context, table string) ([]datasource.ColumnMetadata, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT cid, name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var cols []datasource.ColumnMetadata
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, datasource.ColumnMetadata{
			ColumnName:      name,
			DataType:        strings.ToLower(typ),
			IsNullable:      notNull == 0 && pk == 0,
			IsPrimaryKey:    pk > 0,
			OrdinalPosition: cid + 1,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return cols, nil
}

func (c *Connector) foreignKeys(ctx context.Context, table string) ([]datasource.ForeignKeyMetadata, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, "table", "from", "to" FROM pragma_foreign_key_list(?) ORDER BY id, seq`, table)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKeyMetadata
	for rows.Next() {
		var (
			id           int
			target, from string
			to           sql.NullString
		)
		if err := rows.Scan(&id, &target, &from, &to); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, datasource.ForeignKeyMetadata{
			ConstraintName: fmt.Sprintf("%s_%s_fkey", table, from),
			SourceTable:    table,
			SourceColumn:   from,
			TargetTable:    target,
			TargetColumn:   to.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}
	rows.Close()

	// A bare REFERENCES clause points at the target's primary key.
	for i := range fks {
		if fks[i].TargetColumn != "" {
			continue
		}
		if err := c.db.QueryRowContext(ctx, `SELECT name FROM pragma_table_info(?) WHERE pk = 1`, fks[i].TargetTable).Scan(&fks[i].TargetColumn); err != nil {
			return nil, fmt.Errorf("resolve primary key of %s: %w", fks[i].TargetTable, err)
		}
	}
	return fks, nil
}

func (c *Connector) CountTableRecords(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+memtable.QuoteIdentifier(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (c *Connector) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
	rows, err := c.db.QueryContext(ctx, datasource.WrapLimit(sqlQuery, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()
	return datasource.CollectRows(rows, nil)
}

func (c *Connector) Close() error {
	return c.db.Close()
}

var (
	_ datasource.ConnectionTester = (*Connector)(nil)
	_ datasource.SchemaDiscoverer = (*Connector)(nil)
	_ datasource.QueryExecutor    = (*Connector)(nil)
)
