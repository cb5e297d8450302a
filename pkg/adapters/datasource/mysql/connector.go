// Package mysql is the live connector for MySQL and MariaDB servers.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
)

// Connector owns a small database/sql pool.
type Connector struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// Open prepares a pool. Connection errors surface on first use.
func Open(cfg *Config, logger *zap.Logger) (*Connector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(time.Minute)
	return &Connector{config: cfg, db: db, logger: logger.Named("mysql")}, nil
}

// QuoteIdentifier wraps a name in backticks.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (c *Connector) TestConnection(ctx context.Context) (*datasource.ConnectionInfo, error) {
	start := time.Now()
	if err := c.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	latency := time.Since(start)

	var currentDB sql.NullString
	var version string
	if err := c.db.QueryRowContext(ctx, "SELECT DATABASE(), VERSION()").Scan(&currentDB, &version); err != nil {
		return nil, fmt.Errorf("test query failed: %w", err)
	}
	if !strings.EqualFold(currentDB.String, c.config.Database) {
		return nil, fmt.Errorf("connected to wrong database: expected %q but connected to %q", c.config.Database, currentDB.String)
	}

	version = "MySQL " + version
	return &datasource.ConnectionInfo{
		Message: "Connection successful",
		Latency: latency,
		Version: version,
		Details: map[string]any{"latency": latency.Milliseconds(), "version": version},
	}, nil
}

// DiscoverSchema reads information_schema for the connected database.
// Row counts are the engine's TABLE_ROWS estimates.
func (c *Connector) DiscoverSchema(ctx context.Context) (*datasource.DiscoveredSchema, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT TABLE_NAME, COALESCE(TABLE_ROWS, 0)
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	var tables []datasource.TableMetadata
	index := map[string]int{}
	for rows.Next() {
		t := datasource.TableMetadata{SchemaName: c.config.Database}
		if err := rows.Scan(&t.TableName, &t.RowCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan table: %w", err)
		}
		index[t.TableName] = len(tables)
		tables = append(tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	if err := c.discoverColumns(ctx, tables, index); err != nil {
		return nil, err
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

// discoverColumns fetches every column of the database in one query.
func (c *Connector) discoverColumns(ctx context.Context, tables []datasource.TableMetadata, index map[string]int) error {
	rows, err := c.db.QueryContext(ctx, `
		SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, IS_NULLABLE = 'YES', COLUMN_KEY = 'PRI',
			ORDINAL_POSITION, COALESCE(COLUMN_COMMENT, '')
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE()
		ORDER BY TABLE_NAME, ORDINAL_POSITION`)
	if err != nil {
		return fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var table string
		var col datasource.ColumnMetadata
		if err := rows.Scan(&table, &col.ColumnName, &col.DataType, &col.IsNullable, &col.IsPrimaryKey,
			&col.OrdinalPosition, &col.Description); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		// Views show up here too.
		i, ok := index[table]
		if !ok {
			continue
		}
		tables[i].Columns = append(tables[i].Columns, col)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate columns: %w", err)
	}
	return nil
}

func (c *Connector) discoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT CONSTRAINT_NAME, TABLE_SCHEMA, TABLE_NAME, COLUMN_NAME,
			REFERENCED_TABLE_SCHEMA, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = DATABASE() AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKeyMetadata
	for rows.Next() {
		var fk datasource.ForeignKeyMetadata
		if err := rows.Scan(&fk.ConstraintName, &fk.SourceSchema, &fk.SourceTable, &fk.SourceColumn,
			&fk.TargetSchema, &fk.TargetTable, &fk.TargetColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}
	return fks, nil
}

func (c *Connector) CountTableRecords(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+QuoteIdentifier(table)).Scan(&n); err != nil {
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
