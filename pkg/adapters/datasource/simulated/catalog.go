package simulated

import (
	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

// Record counts reported by a simulated connect.
const (
	fileRecordCount    int64 = 5000
	defaultRecordCount int64 = 10000
)

var recordCounts = map[models.DataSourceType]int64{
	models.DataSourceTypePostgreSQL: 1250000,
	models.DataSourceTypeMySQL:      1250000,
	models.DataSourceTypeSQLite:     50000,
	models.DataSourceTypeMongoDB:    750000,
	models.DataSourceTypeAPI:        2345000,
}

func recordCount(t models.DataSourceType) int64 {
	if n, ok := recordCounts[t]; ok {
		return n
	}
	return defaultRecordCount
}

func col(name, typ string, pk bool) datasource.ColumnMetadata {
	return datasource.ColumnMetadata{ColumnName: name, DataType: typ, IsPrimaryKey: pk, IsNullable: !pk}
}

func withPositions(cols ...datasource.ColumnMetadata) []datasource.ColumnMetadata {
	for i := range cols {
		cols[i].OrdinalPosition = i + 1
	}
	return cols
}

func relationalSchema() *datasource.DiscoveredSchema {
	return &datasource.DiscoveredSchema{
		Tables: []datasource.TableMetadata{
			{
				TableName: "campaigns",
				RowCount:  250,
				Columns: withPositions(
					col("id", "integer", true),
					col("name", "varchar", false),
					col("start_date", "date", false),
					col("end_date", "date", false),
					col("budget", "decimal", false),
					col("status", "varchar", false),
				),
			},
			{
				TableName: "campaign_metrics",
				RowCount:  12500,
				Columns: withPositions(
					col("id", "integer", true),
					col("campaign_id", "integer", false),
					col("date", "date", false),
					col("impressions", "integer", false),
					col("clicks", "integer", false),
					col("conversions", "integer", false),
					col("spend", "decimal", false),
				),
			},
		},
		Relationships: []datasource.ForeignKeyMetadata{{
			ConstraintName: "campaign_metrics_campaign_id_fkey",
			SourceTable:    "campaign_metrics",
			SourceColumn:   "campaign_id",
			TargetTable:    "campaigns",
			TargetColumn:   "id",
		}},
	}
}

func documentSchema() *datasource.DiscoveredSchema {
	return &datasource.DiscoveredSchema{
		Tables: []datasource.TableMetadata{{
			TableName: "campaigns",
			RowCount:  250,
			Columns: withPositions(
				col("_id", "objectId", true),
				col("name", "string", false),
				col("dateRange", "object", false),
				col("dateRange.start", "date", false),
				col("dateRange.end", "date", false),
				col("budget", "number", false),
				col("status", "string", false),
				col("metrics", "array", false),
			),
		}},
	}
}

func fileSchema(t models.DataSourceType, tableName string, rows int64) *datasource.DiscoveredSchema {
	var columns []datasource.ColumnMetadata
	switch t {
	case models.DataSourceTypeJSON:
		columns = withPositions(
			col("id", "integer", true),
			col("title", "string", false),
			col("completed", "boolean", false),
			col("created_at", "date", false),
		)
	default:
		columns = withPositions(
			col("id", "integer", true),
			col("name", "string", false),
			col("email", "string", false),
			col("signup_date", "date", false),
			col("last_purchase", "date", false),
		)
	}
	return &datasource.DiscoveredSchema{
		Tables: []datasource.TableMetadata{{TableName: tableName, RowCount: rows, Columns: columns}},
	}
}

func apiSchema() *datasource.DiscoveredSchema {
	return &datasource.DiscoveredSchema{
		Tables: []datasource.TableMetadata{
			{
				TableName: "users",
				RowCount:  10000,
				Columns: withPositions(
					col("id", "integer", true),
					col("name", "string", false),
					col("email", "string", false),
					col("created_at", "date", false),
				),
			},
			{
				TableName: "posts",
				RowCount:  50000,
				Columns: withPositions(
					col("id", "integer", true),
					col("user_id", "integer", false),
					col("title", "string", false),
					col("body", "string", false),
					col("created_at", "date", false),
				),
			},
		},
		Relationships: []datasource.ForeignKeyMetadata{{
			ConstraintName: "posts_user_id_fkey",
			SourceTable:    "posts",
			SourceColumn:   "user_id",
			TargetTable:    "users",
			TargetColumn:   "id",
		}},
	}
}

// campaignResult is the canned answer to every simulated query.
func campaignResult() *datasource.QueryExecutionResult {
	rows := []map[string]any{
		{"id": 1, "name": "Campaign 1", "conversions": 120, "spend": 1500, "roi": 2.5},
		{"id": 2, "name": "Campaign 2", "conversions": 85, "spend": 1200, "roi": 1.8},
		{"id": 3, "name": "Campaign 3", "conversions": 210, "spend": 2500, "roi": 3.2},
	}
	return &datasource.QueryExecutionResult{
		Columns: []datasource.ColumnInfo{
			{Name: "id", Type: "integer"},
			{Name: "name", Type: "string"},
			{Name: "conversions", Type: "integer"},
			{Name: "spend", Type: "number"},
			{Name: "roi", Type: "number"},
		},
		Rows:     rows,
		RowCount: len(rows),
		Notes: []string{
			"Campaign 3 has the highest ROI at 3.2",
			"Campaign 1 has a good balance of conversions and spend",
			"Consider reallocating budget from Campaign 2 to Campaign 3",
		},
	}
}
