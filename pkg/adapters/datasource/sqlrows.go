package datasource

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CollectRows drains rows from a database/sql driver into a result.
// typeName maps a driver column type to the name reported to clients;
// nil uses the driver's DatabaseTypeName.
func CollectRows(rows *sql.Rows, typeName func(*sql.ColumnType) string) (*QueryExecutionResult, error) {
	return CollectRowsN(rows, typeName, 0)
}

// CollectRowsN is CollectRows that stops after maxRows rows; maxRows <= 0 reads all.
// Used where the dialect cannot wrap an arbitrary SELECT in a LIMIT.
func CollectRowsN(rows *sql.Rows, typeName func(*sql.ColumnType) string, maxRows int) (*QueryExecutionResult, error) {
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	columns := make([]ColumnInfo, len(columnTypes))
	for i, ct := range columnTypes {
		name := strings.ToLower(ct.DatabaseTypeName())
		if typeName != nil {
			name = typeName(ct)
		}
		columns[i] = ColumnInfo{Name: ct.Name(), Type: name}
	}

	resultRows := make([]map[string]any, 0)
	for (maxRows <= 0 || len(resultRows) < maxRows) && rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = NormalizeValue(values[i])
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// NormalizeValue turns driver values into JSON-friendly ones.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return val
	}
}

// WrapLimit bounds a SELECT with a LIMIT clause (PostgreSQL, MySQL, SQLite).
// The closing parenthesis starts a new line so a trailing line comment in the
// statement cannot swallow it.
func WrapLimit(sqlQuery string, limit int) string {
	trimmed := strings.TrimRight(strings.TrimSpace(sqlQuery), ";")
	return fmt.Sprintf("SELECT * FROM (%s\n) AS _limited LIMIT %d", trimmed, EffectiveLimit(limit))
}
