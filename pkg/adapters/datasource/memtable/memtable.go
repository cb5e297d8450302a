// Package memtable loads parsed rows into a private in-memory SQLite database
// so file and API sources can be introspected and queried with SQL.
package memtable

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/tabular"
)

// Store is an in-memory SQLite database holding loaded tables.
type Store struct {
	db     *sql.DB
	tables []datasource.TableMetadata
}

// New opens an empty store. The single connection keeps the in-memory
// database alive for the lifetime of the store.
func New(ctx context.Context) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return &Store{db: db}, nil
}

// QuoteIdentifier quotes a SQLite identifier.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqliteType(columnType string) string {
	switch columnType {
	case tabular.TypeInteger, tabular.TypeBoolean:
		return "INTEGER"
	case tabular.TypeNumber:
		return "REAL"
	default:
		return "TEXT"
	}
}

// Load creates a table named name and inserts every row of t.
func (s *Store) Load(ctx context.Context, name string, t *tabular.Table) error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %q has no columns", name)
	}

	defs := make([]string, len(t.Columns))
	cols := make([]datasource.ColumnMetadata, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = QuoteIdentifier(c.Name) + " " + sqliteType(c.Type)
		cols[i] = datasource.ColumnMetadata{
			ColumnName:      c.Name,
			DataType:        c.Type,
			IsNullable:      true,
			OrdinalPosition: i + 1,
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdentifier(name), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create table %q: %w", name, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", QuoteIdentifier(name), placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range t.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit load: %w", err)
	}

	s.tables = append(s.tables, datasource.TableMetadata{
		TableName: name,
		RowCount:  int64(len(t.Rows)),
		Columns:   cols,
	})
	return nil
}

// Schema describes the loaded tables.
func (s *Store) Schema() *datasource.DiscoveredSchema {
	schema := &datasource.DiscoveredSchema{Tables: append([]datasource.TableMetadata(nil), s.tables...)}
	schema.RecordCount = schema.TotalRows()
	return schema
}

// Count returns the number of rows in a loaded table.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+QuoteIdentifier(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %q: %w", table, err)
	}
	return n, nil
}

// Query runs a bounded SELECT against the loaded tables.
func (s *Store) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
	rows, err := s.db.QueryContext(ctx, datasource.WrapLimit(sqlQuery, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()
	return datasource.CollectRows(rows, nil)
}

// Close drops the database.
func (s *Store) Close() error {
	return s.db.Close()
}
