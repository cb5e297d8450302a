package datasource

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

// ConnectorFactory creates connectors from the registry.
type ConnectorFactory interface {
	// NewConnectionTester creates a connection tester for the given type.
	NewConnectionTester(ctx context.Context, dsType models.DataSourceType, details models.ConnectionDetails, opts Options) (ConnectionTester, error)

	// NewSchemaDiscoverer creates a schema discoverer for the given type.
	NewSchemaDiscoverer(ctx context.Context, dsType models.DataSourceType, details models.ConnectionDetails, opts Options) (SchemaDiscoverer, error)

	// NewQueryExecutor creates a query executor for the given type.
	NewQueryExecutor(ctx context.Context, dsType models.DataSourceType, details models.ConnectionDetails, opts Options) (QueryExecutor, error)

	// ListTypes returns info for all registered kinds.
	ListTypes() []models.DataSourceTypeInfo
}

type registryFactory struct {
	live     bool
	defaults Options
}

// NewConnectorFactory returns a factory backed by the global registry.
// When live is set, live registrations are preferred over simulated ones.
// defaults fills any zero fields of the Options passed per call.
func NewConnectorFactory(live bool, defaults Options) ConnectorFactory {
	return &registryFactory{live: live, defaults: defaults}
}

func (f *registryFactory) lookup(dsType models.DataSourceType) (Registration, error) {
	reg, ok := Lookup(dsType, f.live)
	if !ok {
		return Registration{}, fmt.Errorf("%w: %s", ErrUnsupportedType, dsType)
	}
	return reg, nil
}

func (f *registryFactory) merge(opts Options) Options {
	if opts.Delays == (Delays{}) {
		opts.Delays = f.defaults.Delays
	}
	if opts.Files == nil {
		opts.Files = f.defaults.Files
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = f.defaults.HTTPClient
	}
	if opts.Logger == nil {
		opts.Logger = f.defaults.Logger
	}
	return opts
}

func (f *registryFactory) NewConnectionTester(ctx context.Context, dsType models.DataSourceType, details models.ConnectionDetails, opts Options) (ConnectionTester, error) {
	reg, err := f.lookup(dsType)
	if err != nil {
		return nil, err
	}
	if reg.Factory == nil {
		return nil, fmt.Errorf("connection test not supported for type: %s", dsType)
	}
	return reg.Factory(ctx, details, f.merge(opts))
}

func (f *registryFactory) NewSchemaDiscoverer(ctx context.Context, dsType models.DataSourceType, details models.ConnectionDetails, opts Options) (SchemaDiscoverer, error) {
	reg, err := f.lookup(dsType)
	if err != nil {
		return nil, err
	}
	if reg.SchemaDiscovererFactory == nil {
		return nil, fmt.Errorf("schema discovery not supported for type: %s", dsType)
	}
	return reg.SchemaDiscovererFactory(ctx, details, f.merge(opts))
}

func (f *registryFactory) NewQueryExecutor(ctx context.Context, dsType models.DataSourceType, details models.ConnectionDetails, opts Options) (QueryExecutor, error) {
	reg, err := f.lookup(dsType)
	if err != nil {
		return nil, err
	}
	if reg.QueryExecutorFactory == nil {
		return nil, fmt.Errorf("query execution not supported for type: %s", dsType)
	}
	return reg.QueryExecutorFactory(ctx, details, f.merge(opts))
}

func (f *registryFactory) ListTypes() []models.DataSourceTypeInfo {
	return RegisteredTypes()
}

// Ensure registryFactory implements ConnectorFactory at compile time.
var _ ConnectorFactory = (*registryFactory)(nil)
