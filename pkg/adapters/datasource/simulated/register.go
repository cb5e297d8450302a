package simulated

import (
	"context"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

var adapters = []datasource.AdapterInfo{
	{Type: models.DataSourceTypePostgreSQL, DisplayName: "PostgreSQL", Description: "Connect to PostgreSQL 12+", Icon: "postgresql"},
	{Type: models.DataSourceTypeMySQL, DisplayName: "MySQL", Description: "Connect to MySQL 5.7+ and MariaDB", Icon: "mysql"},
	{Type: models.DataSourceTypeMSSQL, DisplayName: "Microsoft SQL Server", Description: "Connect to SQL Server 2016+ and Azure SQL", Icon: "mssql"},
	{Type: models.DataSourceTypeSQLite, DisplayName: "SQLite", Description: "Open a SQLite database file", Icon: "sqlite"},
	{Type: models.DataSourceTypeMongoDB, DisplayName: "MongoDB", Description: "Connect to MongoDB 4.4+", Icon: "mongodb"},
	{Type: models.DataSourceTypeCSV, DisplayName: "CSV File", Description: "Upload a comma-separated file", Icon: "csv"},
	{Type: models.DataSourceTypeExcel, DisplayName: "Excel Workbook", Description: "Upload an .xlsx or .xls workbook", Icon: "excel"},
	{Type: models.DataSourceTypeJSON, DisplayName: "JSON File", Description: "Upload a JSON array of records", Icon: "json"},
	{Type: models.DataSourceTypeAPI, DisplayName: "REST API", Description: "Fetch records from an HTTP JSON endpoint", Icon: "api"},
}

func init() {
	for _, info := range adapters {
		dsType := info.Type
		datasource.Register(datasource.Registration{
			Info: info,
			Factory: func(_ context.Context, details models.ConnectionDetails, opts datasource.Options) (datasource.ConnectionTester, error) {
				return New(dsType, details, opts), nil
			},
			SchemaDiscovererFactory: func(_ context.Context, details models.ConnectionDetails, opts datasource.Options) (datasource.SchemaDiscoverer, error) {
				return New(dsType, details, opts), nil
			},
			QueryExecutorFactory: func(_ context.Context, details models.ConnectionDetails, opts datasource.Options) (datasource.QueryExecutor, error) {
				return New(dsType, details, opts), nil
			},
		})
	}
}
