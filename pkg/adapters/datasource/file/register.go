package file

import (
	"context"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

func init() {
	infos := []datasource.AdapterInfo{
		{Type: models.DataSourceTypeCSV, DisplayName: "CSV File", Description: "Upload a comma-separated file", Icon: "csv"},
		{Type: models.DataSourceTypeExcel, DisplayName: "Excel Workbook", Description: "Upload an .xlsx or .xls workbook", Icon: "excel"},
		{Type: models.DataSourceTypeJSON, DisplayName: "JSON File", Description: "Upload a JSON array of records", Icon: "json"},
	}
	for _, info := range infos {
		dsType := info.Type
		datasource.Register(datasource.Registration{
			Info: info,
			Live: true,
			Factory: func(ctx context.Context, details models.ConnectionDetails, opts datasource.Options) (datasource.ConnectionTester, error) {
				return Open(ctx, dsType, details, opts)
			},
			SchemaDiscovererFactory: func(ctx context.Context, details models.ConnectionDetails, opts datasource.Options) (datasource.SchemaDiscoverer, error) {
				return Open(ctx, dsType, details, opts)
			},
			QueryExecutorFactory: func(ctx context.Context, details models.ConnectionDetails, opts datasource.Options) (datasource.QueryExecutor, error) {
				return Open(ctx, dsType, details, opts)
			},
		})
	}
}
