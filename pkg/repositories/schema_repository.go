package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ekaya-inc/genbi-engine/pkg/database"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

// SchemaRepository stores the introspected tables, columns and relationships
// of data sources.
type SchemaRepository interface {
	// ReplaceSchema deletes the existing schema of a data source and inserts
	// the given one in a single transaction. Relationships reference tables
	// by name through SourceTable and TargetTable; unknown names are skipped.
	ReplaceSchema(ctx context.Context, dataSourceID uuid.UUID, tables []models.DataSourceTable, relationships []models.DataSourceRelationship) error

	// ListTables returns tables with their columns in discovery order.
	ListTables(ctx context.Context, dataSourceID uuid.UUID) ([]models.DataSourceTable, error)

	ListRelationships(ctx context.Context, dataSourceID uuid.UUID) ([]models.DataSourceRelationship, error)
}

type schemaRepository struct {
	db *database.DB
}

var _ SchemaRepository = (*schemaRepository)(nil)

// NewSchemaRepository creates a new schema repository.
func NewSchemaRepository(db *database.DB) SchemaRepository {
	return &schemaRepository{db: db}
}

func (r *schemaRepository) ReplaceSchema(ctx context.Context, dataSourceID uuid.UUID, tables []models.DataSourceTable, relationships []models.DataSourceRelationship) error {
	return r.db.RunInTx(ctx, func(ctx context.Context) error {
		conn := r.db.Conn(ctx)
		dsID := dataSourceID.String()

		// columns and relationships cascade
		if _, err := conn.ExecContext(ctx, `DELETE FROM data_source_tables WHERE data_source_id = ?`, dsID); err != nil {
			return fmt.Errorf("failed to clear tables: %w", err)
		}

		tableIDs := make(map[string]uuid.UUID, len(tables))
		for i, table := range tables {
			tableID := uuid.New()
			tableIDs[table.Name] = tableID

			if _, err := conn.ExecContext(ctx, `
				INSERT INTO data_source_tables (id, data_source_id, name, row_count, position)
				VALUES (?, ?, ?, ?, ?)`,
				tableID.String(), dsID, table.Name, nullInt64(table.RowCount), i,
			); err != nil {
				return fmt.Errorf("failed to insert table %s: %w", table.Name, err)
			}

			for j, col := range table.Columns {
				if _, err := conn.ExecContext(ctx, `
					INSERT INTO data_source_columns (id, table_id, name, type, is_primary, is_nullable, description, position)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					uuid.NewString(), tableID.String(), col.Name, col.Type, col.IsPrimary, col.IsNullable,
					nullString(col.Description), j,
				); err != nil {
					return fmt.Errorf("failed to insert column %s.%s: %w", table.Name, col.Name, err)
				}
			}
		}

		for _, rel := range relationships {
			sourceID, okSource := tableIDs[rel.SourceTable]
			targetID, okTarget := tableIDs[rel.TargetTable]
			if !okSource || !okTarget {
				continue
			}
			if _, err := conn.ExecContext(ctx, `
				INSERT INTO data_source_relationships
					(id, data_source_id, name, source_table_id, source_column, target_table_id, target_column)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), dsID, rel.Name, sourceID.String(), rel.SourceColumn, targetID.String(), rel.TargetColumn,
			); err != nil {
				return fmt.Errorf("failed to insert relationship %s: %w", rel.Name, err)
			}
		}
		return nil
	})
}

func nullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func (r *schemaRepository) ListTables(ctx context.Context, dataSourceID uuid.UUID) ([]models.DataSourceTable, error) {
	conn := r.db.Conn(ctx)

	rows, err := conn.QueryContext(ctx, `
		SELECT id, name, row_count FROM data_source_tables
		WHERE data_source_id = ? ORDER BY position, name`, dataSourceID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	var (
		tables []models.DataSourceTable
		index  = map[string]int{}
	)
	for rows.Next() {
		var (
			id       string
			rowCount sql.NullInt64
			table    models.DataSourceTable
		)
		if err := rows.Scan(&id, &table.Name, &rowCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		table.ID = uuid.MustParse(id)
		table.DataSourceID = dataSourceID
		table.RowCount = int64Ptr(rowCount)
		table.Columns = []models.DataSourceColumn{}
		index[id] = len(tables)
		tables = append(tables, table)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tables: %w", err)
	}
	if len(tables) == 0 {
		return []models.DataSourceTable{}, nil
	}

	colRows, err := conn.QueryContext(ctx, `
		SELECT c.id, c.table_id, c.name, c.type, c.is_primary, c.is_nullable, c.description, c.position
		FROM data_source_columns c
		JOIN data_source_tables t ON t.id = c.table_id
		WHERE t.data_source_id = ?
		ORDER BY c.table_id, c.position`, dataSourceID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	defer colRows.Close()

	for colRows.Next() {
		var (
			id, tableID string
			desc        sql.NullString
			col         models.DataSourceColumn
		)
		if err := colRows.Scan(&id, &tableID, &col.Name, &col.Type, &col.IsPrimary, &col.IsNullable, &desc, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col.ID = uuid.MustParse(id)
		col.TableID = uuid.MustParse(tableID)
		col.Description = stringPtr(desc)
		if i, ok := index[tableID]; ok {
			tables[i].Columns = append(tables[i].Columns, col)
		}
	}
	if err := colRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate columns: %w", err)
	}
	return tables, nil
}

func (r *schemaRepository) ListRelationships(ctx context.Context, dataSourceID uuid.UUID) ([]models.DataSourceRelationship, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, `
		SELECT r.id, r.name, r.source_table_id, s.name, r.source_column, r.target_table_id, t.name, r.target_column
		FROM data_source_relationships r
		JOIN data_source_tables s ON s.id = r.source_table_id
		JOIN data_source_tables t ON t.id = r.target_table_id
		WHERE r.data_source_id = ?
		ORDER BY r.name`, dataSourceID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	defer rows.Close()

	out := []models.DataSourceRelationship{}
	for rows.Next() {
		var (
			id, sourceID, targetID string
			rel                    models.DataSourceRelationship
		)
		if err := rows.Scan(&id, &rel.Name, &sourceID, &rel.SourceTable, &rel.SourceColumn, &targetID, &rel.TargetTable, &rel.TargetColumn); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		rel.ID = uuid.MustParse(id)
		rel.DataSourceID = dataSourceID
		rel.SourceTableID = uuid.MustParse(sourceID)
		rel.TargetTableID = uuid.MustParse(targetID)
		out = append(out, rel)
	}
	return out, rows.Err()
}
