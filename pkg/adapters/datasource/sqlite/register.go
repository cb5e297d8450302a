package sqlite

import (
	"context"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        models.DataSourceTypeSQLite,
			DisplayName: "SQLite",
			Description: "Open a SQLite database file",
			Icon:        "sqlite",
		},
		Live: true,
		Factory: func(ctx context.Context, details models.ConnectionDetails, _ datasource.Options) (datasource.ConnectionTester, error) {
			return Open(ctx, details)
		},
		SchemaDiscovererFactory: func(ctx context.Context, details models.ConnectionDetails, _ datasource.Options) (datasource.SchemaDiscoverer, error) {
			return Open(ctx, details)
		},
		QueryExecutorFactory: func(ctx context.Context, details models.ConnectionDetails, _ datasource.Options) (datasource.QueryExecutor, error) {
			return Open(ctx, details)
		},
	})
}
