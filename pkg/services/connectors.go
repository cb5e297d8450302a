package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/crypto"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
	"github.com/ekaya-inc/genbi-engine/pkg/repositories"
)

// sourceLoader reads a data source with its decrypted, decoded connection
// details. Shared by the services that open connectors.
type sourceLoader struct {
	repo   repositories.DataSourceRepository
	sealer *crypto.DetailsSealer
}

func (l *sourceLoader) load(ctx context.Context, id uuid.UUID) (*models.DataSource, models.ConnectionDetails, error) {
	ds, sealed, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := l.open(ds, sealed); err != nil {
		return nil, nil, err
	}
	details, err := models.DecodeConnectionDetails(ds.Type, ds.ConnectionDetails)
	if err != nil {
		return nil, nil, err
	}
	return ds, details, nil
}

// open decrypts sealed details into ds.ConnectionDetails.
func (l *sourceLoader) open(ds *models.DataSource, sealed string) error {
	details, err := l.sealer.Open(ds.ID.String(), sealed)
	if err != nil {
		return fmt.Errorf("failed to decrypt connection details: %w", err)
	}
	ds.ConnectionDetails = details
	return nil
}

// schemaFromDiscovery converts connector metadata to persisted schema rows.
// Relationships reference tables by name; the repository resolves ids.
func schemaFromDiscovery(dataSourceID uuid.UUID, discovered *datasource.DiscoveredSchema) ([]models.DataSourceTable, []models.DataSourceRelationship) {
	tables := make([]models.DataSourceTable, 0, len(discovered.Tables))
	for _, t := range discovered.Tables {
		rowCount := t.RowCount
		table := models.DataSourceTable{
			DataSourceID: dataSourceID,
			Name:         t.TableName,
			RowCount:     &rowCount,
			Columns:      make([]models.DataSourceColumn, 0, len(t.Columns)),
		}
		for i, c := range t.Columns {
			col := models.DataSourceColumn{
				Name:       c.ColumnName,
				Type:       c.DataType,
				IsPrimary:  c.IsPrimaryKey,
				IsNullable: c.IsNullable,
				Position:   c.OrdinalPosition,
			}
			if col.Position == 0 {
				col.Position = i + 1
			}
			if c.Description != "" {
				desc := c.Description
				col.Description = &desc
			}
			table.Columns = append(table.Columns, col)
		}
		tables = append(tables, table)
	}

	relationships := make([]models.DataSourceRelationship, 0, len(discovered.Relationships))
	for _, fk := range discovered.Relationships {
		name := fk.ConstraintName
		if name == "" {
			name = fmt.Sprintf("%s_%s_fkey", fk.SourceTable, fk.SourceColumn)
		}
		relationships = append(relationships, models.DataSourceRelationship{
			DataSourceID: dataSourceID,
			Name:         name,
			SourceTable:  fk.SourceTable,
			SourceColumn: fk.SourceColumn,
			TargetTable:  fk.TargetTable,
			TargetColumn: fk.TargetColumn,
		})
	}
	return tables, relationships
}
