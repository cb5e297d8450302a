// Package mssql is the live connector for Microsoft SQL Server.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
)

// Connector owns a database/sql pool against one SQL Server database.
type Connector struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// Open prepares the pool. Connection errors surface on first use.
func Open(cfg *Config, logger *zap.Logger) (*Connector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlserver", cfg.connectionURL())
	if err != nil {
		return nil, fmt.Errorf("open SQL auth connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(time.Minute)
	return &Connector{config: cfg, db: db, logger: logger.Named("mssql")}, nil
}

// QuoteIdentifier brackets a name, doubling closing brackets.
func QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (c *Connector) TestConnection(ctx context.Context) (*datasource.ConnectionInfo, error) {
	start := time.Now()
	if err := c.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connection test failed: %w", err)
	}
	latency := time.Since(start)

	var currentDB, version string
	err := c.db.QueryRowContext(ctx,
		"SELECT DB_NAME(), CAST(SERVERPROPERTY('ProductVersion') AS NVARCHAR(128))").Scan(&currentDB, &version)
	if err != nil {
		return nil, fmt.Errorf("test query failed: %w", err)
	}
	if !strings.EqualFold(currentDB, c.config.Database) {
		return nil, fmt.Errorf("connected to wrong database: expected %q but connected to %q", c.config.Database, currentDB)
	}

	version = "Microsoft SQL Server " + version
	return &datasource.ConnectionInfo{
		Message: "Connection successful",
		Latency: latency,
		Version: version,
		Details: map[string]any{"latency": latency.Milliseconds(), "version": version},
	}, nil
}

// DiscoverSchema reads the catalog views. Row counts come from
// sys.partitions and are exact for committed data.
func (c *Connector) DiscoverSchema(ctx context.Context) (*datasource.DiscoveredSchema, error) {
	tables, err := c.discoverTables(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tables {
		cols, err := c.discoverColumns(ctx, tables[i].SchemaName, tables[i].TableName)
		if err != nil {
			return nil, fmt.Errorf("columns of %s: %w", tables[i].TableName, err)
		}
		tables[i].Columns = cols
	}
	fks, err := c.discoverForeignKeys(ctx)
	if err != nil {
		return nil, err
	}

	schema := &datasource.DiscoveredSchema{Tables: tables, Relationships: fks}
	schema.RecordCount = schema.TotalRows()
	c.logger.Debug("Discovered schema", zap.Int("tables", len(tables)), zap.Int("relationships", len(fks)))
	return schema, nil
}

func (c *Connector) discoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	const query = `
	SET NOCOUNT ON;
	SELECT
	    SCHEMA_NAME(t.schema_id) AS table_schema,
	    t.name AS table_name,
	    SUM(p.rows) AS row_count
	FROM sys.tables t
	INNER JOIN sys.partitions p ON t.object_id = p.object_id
	WHERE p.index_id IN (0, 1)
	  AND t.is_ms_shipped = 0
	GROUP BY t.schema_id, t.name
	ORDER BY table_schema, table_name
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var t datasource.TableMetadata
		if err := rows.Scan(&t.SchemaName, &t.TableName, &t.RowCount); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}
	return tables, nil
}

func (c *Connector) discoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
	SET NOCOUNT ON;
	SELECT
	    c.name,
	    tp.name,
	    CASE WHEN c.is_nullable = 1 THEN 1 ELSE 0 END,
	    c.column_id,
	    CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END,
	    COALESCE(CAST(ep.value AS NVARCHAR(4000)), '')
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	LEFT JOIN (
	    SELECT ic.object_id, ic.column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_primary_key = 1
	) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
	LEFT JOIN sys.extended_properties ep
	    ON ep.major_id = c.object_id AND ep.minor_id = c.column_id AND ep.name = 'MS_Description'
	WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	ORDER BY c.column_id
	`

	rows, err := c.db.QueryContext(ctx, query, sql.Named("schema", schemaName), sql.Named("table", tableName))
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var col datasource.ColumnMetadata
		var isNullable, isPrimary int
		if err := rows.Scan(&col.ColumnName, &col.DataType, &isNullable, &col.OrdinalPosition, &isPrimary, &col.Description); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		col.IsNullable = isNullable == 1
		col.IsPrimaryKey = isPrimary == 1
		col.DataType = mapSQLServerType(col.DataType)
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	return columns, nil
}

func (c *Connector) discoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	const query = `
	SET NOCOUNT ON;
	SELECT
	    fk.name,
	    SCHEMA_NAME(fk.schema_id),
	    OBJECT_NAME(fk.parent_object_id),
	    COL_NAME(fkc.parent_object_id, fkc.parent_column_id),
	    SCHEMA_NAME(rt.schema_id),
	    OBJECT_NAME(fk.referenced_object_id),
	    COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id)
	FROM sys.foreign_keys fk
	INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	INNER JOIN sys.tables rt ON fk.referenced_object_id = rt.object_id
	WHERE fk.is_ms_shipped = 0
	ORDER BY 2, 3, fk.name, fkc.constraint_column_id
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKeyMetadata
	for rows.Next() {
		var fk datasource.ForeignKeyMetadata
		if err := rows.Scan(&fk.ConstraintName, &fk.SourceSchema, &fk.SourceTable, &fk.SourceColumn,
			&fk.TargetSchema, &fk.TargetTable, &fk.TargetColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key row: %w", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign key rows: %w", err)
	}
	return fks, nil
}

// CountTableRecords accepts "table" or "schema.table".
func (c *Connector) CountTableRecords(ctx context.Context, table string) (int64, error) {
	target := QuoteIdentifier(table)
	if schema, name, ok := strings.Cut(table, "."); ok {
		target = QuoteIdentifier(schema) + "." + QuoteIdentifier(name)
	}
	var n int64
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT_BIG(*) FROM "+target).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Query runs the statement unchanged and reads at most the effective limit.
// T-SQL rejects ORDER BY inside a derived table, so the LIMIT wrapping used
// by the other dialects does not apply.
func (c *Connector) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
	ctx, cancel := context.WithCancel(ctx)

	rows, err := c.db.QueryContext(ctx, strings.TrimRight(strings.TrimSpace(sqlQuery), ";"))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	// Cancel first so the driver abandons rows past the limit.
	defer func() {
		cancel()
		_ = rows.Close()
	}()
	return datasource.CollectRowsN(rows, func(ct *sql.ColumnType) string {
		return mapSQLServerType(ct.DatabaseTypeName())
	}, datasource.EffectiveLimit(limit))
}

func (c *Connector) Close() error {
	return c.db.Close()
}

var (
	_ datasource.ConnectionTester = (*Connector)(nil)
	_ datasource.SchemaDiscoverer = (*Connector)(nil)
	_ datasource.QueryExecutor    = (*Connector)(nil)
)
