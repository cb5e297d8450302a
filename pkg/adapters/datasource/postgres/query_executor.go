package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
)

// Query runs a SELECT bounded by the effective limit.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
	rows, err := a.pool.Query(ctx, datasource.WrapLimit(sqlQuery, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.ColumnInfo{
			Name: fd.Name,
			Type: pgTypeNameFromOID(fd.DataTypeOID),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = normalizePgValue(values[i])
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &datasource.QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// normalizePgValue converts pgx-specific decodings into plain JSON values.
func normalizePgValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return datasource.NormalizeValue(v)
	}
}

// pgTypeNames covers the common built-in type OIDs.
var pgTypeNames = map[uint32]string{
	16:   "bool",
	17:   "bytea",
	18:   "char",
	20:   "int8",
	21:   "int2",
	23:   "int4",
	25:   "text",
	26:   "oid",
	114:  "json",
	142:  "xml",
	700:  "float4",
	701:  "float8",
	790:  "money",
	1042: "bpchar",
	1043: "varchar",
	1082: "date",
	1083: "time",
	1114: "timestamp",
	1184: "timestamptz",
	1186: "interval",
	1266: "timetz",
	1700: "numeric",
	2950: "uuid",
	3802: "jsonb",
	1000: "bool[]",
	1005: "int2[]",
	1007: "int4[]",
	1016: "int8[]",
	1009: "text[]",
	1015: "varchar[]",
	1021: "float4[]",
	1022: "float8[]",
	2951: "uuid[]",
	3807: "jsonb[]",
}

// pgTypeNameFromOID maps a type OID to its name; unknown types return "unknown".
func pgTypeNameFromOID(oid uint32) string {
	if name, ok := pgTypeNames[oid]; ok {
		return name
	}
	return "unknown"
}
