package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/logging"
)

// Adapter provides PostgreSQL connectivity. One adapter serves all three
// connector capabilities over a pool it owns.
type Adapter struct {
	config *Config
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewAdapter opens a small pool. Connection errors surface on first use.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	connStr := buildConnectionString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %s", logging.SanitizeError(err))
	}
	poolCfg.MaxConns = 4
	poolCfg.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &Adapter{config: cfg, pool: pool, logger: logger.Named("postgres")}, nil
}

// TestConnection verifies the database is reachable with valid credentials.
// It checks:
// 1. Server connectivity (ping)
// 2. Correct database name (to prevent connecting to a default database)
// 3. Server version
func (a *Adapter) TestConnection(ctx context.Context) (*datasource.ConnectionInfo, error) {
	start := time.Now()
	if err := a.pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	latency := time.Since(start)

	var currentDB, version string
	if err := a.pool.QueryRow(ctx, "SELECT current_database(), current_setting('server_version')").Scan(&currentDB, &version); err != nil {
		return nil, fmt.Errorf("test query failed: %w", err)
	}

	// Case-insensitive to tolerate common configuration casing mistakes.
	if !strings.EqualFold(currentDB, a.config.Database) {
		return nil, fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB)
	}

	version = "PostgreSQL " + version
	return &datasource.ConnectionInfo{
		Message: "Connection successful",
		Latency: latency,
		Version: version,
		Details: map[string]any{"latency": latency.Milliseconds(), "version": version},
	}, nil
}

// Close releases the pool.
func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

var (
	_ datasource.ConnectionTester = (*Adapter)(nil)
	_ datasource.SchemaDiscoverer = (*Adapter)(nil)
	_ datasource.QueryExecutor    = (*Adapter)(nil)
)
