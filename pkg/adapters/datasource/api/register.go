package api

import (
	"context"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        models.DataSourceTypeAPI,
			DisplayName: "REST API",
			Description: "Fetch records from an HTTP JSON endpoint",
			Icon:        "api",
		},
		Live: true,
		Factory: func(ctx context.Context, details models.ConnectionDetails, opts datasource.Options) (datasource.ConnectionTester, error) {
			return Open(ctx, details, opts)
		},
		SchemaDiscovererFactory: func(ctx context.Context, details models.ConnectionDetails, opts datasource.Options) (datasource.SchemaDiscoverer, error) {
			return Open(ctx, details, opts)
		},
		QueryExecutorFactory: func(ctx context.Context, details models.ConnectionDetails, opts datasource.Options) (datasource.QueryExecutor, error) {
			return Open(ctx, details, opts)
		},
	})
}
