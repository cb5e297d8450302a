package postgres

import (
	"context"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

func open(ctx context.Context, details models.ConnectionDetails, opts datasource.Options) (*Adapter, error) {
	cfg, err := FromDetails(details)
	if err != nil {
		return nil, err
	}
	return NewAdapter(ctx, cfg, opts.Logger)
}

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        models.DataSourceTypePostgreSQL,
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL databases",
			Icon:        "postgres",
		},
		Live: true,
		Factory: func(ctx context.Context, details models.ConnectionDetails, opts datasource.Options) (datasource.ConnectionTester, error) {
			return open(ctx, details, opts)
		},
		SchemaDiscovererFactory: func(ctx context.Context, details models.ConnectionDetails, opts datasource.Options) (datasource.SchemaDiscoverer, error) {
			return open(ctx, details, opts)
		},
		QueryExecutorFactory: func(ctx context.Context, details models.ConnectionDetails, opts datasource.Options) (datasource.QueryExecutor, error) {
			return open(ctx, details, opts)
		},
	})
}
