package testhelpers

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresImage = "postgres:16-alpine"
	RedisImage    = "redis:7-alpine"
)

// PostgresDB is a throwaway PostgreSQL server seeded with a small campaign schema.
// Host, Port, User, Password and Database match the fields of a relational
// connectionDetails object.
type PostgresDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
	Host      string
	Port      int
	User      string
	Password  string
	Database  string
}

// ConnectionDetails returns the database as a data source connectionDetails map.
func (p *PostgresDB) ConnectionDetails() map[string]any {
	return map[string]any{
		"host":     p.Host,
		"port":     p.Port,
		"database": p.Database,
		"username": p.User,
		"password": p.Password,
	}
}

var (
	sharedPostgres     *PostgresDB
	sharedPostgresOnce sync.Once
	sharedPostgresErr  error
)

// GetPostgresDB returns a shared PostgreSQL container for live connector tests.
// The container is created once and reused across all tests in the run.
func GetPostgresDB(t *testing.T) *PostgresDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedPostgresOnce.Do(func() {
		sharedPostgres, sharedPostgresErr = setupPostgres()
	})

	if sharedPostgresErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedPostgresErr)
	}

	return sharedPostgres
}

const seedSQL = `
CREATE TABLE IF NOT EXISTS campaigns (
    id SERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    budget NUMERIC(12,2),
    status VARCHAR(20)
);
CREATE TABLE IF NOT EXISTS campaign_metrics (
    id SERIAL PRIMARY KEY,
    campaign_id INTEGER NOT NULL REFERENCES campaigns(id),
    clicks INTEGER,
    spend NUMERIC(12,2)
);
INSERT INTO campaigns (name, budget, status) VALUES
    ('Campaign 1', 1500, 'active'),
    ('Campaign 2', 1200, 'paused'),
    ('Campaign 3', 2500, 'active');
INSERT INTO campaign_metrics (campaign_id, clicks, spend) VALUES (1, 40, 300), (3, 90, 410);
ANALYZE;
`

func setupPostgres() (*PostgresDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "analytics",
			"POSTGRES_USER":     "genbi",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	mapped, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}
	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		return nil, fmt.Errorf("invalid container port %q: %w", mapped.Port(), err)
	}

	connStr := fmt.Sprintf("postgres://genbi:test_password@%s:%d/analytics?sslmode=disable", host, port)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to ping test database: %w", err)
	}

	if _, err := pool.Exec(ctx, seedSQL); err != nil {
		return nil, fmt.Errorf("failed to seed test database: %w", err)
	}

	return &PostgresDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
		Host:      host,
		Port:      port,
		User:      "genbi",
		Password:  "test_password",
		Database:  "analytics",
	}, nil
}

var (
	sharedRedisAddr string
	sharedRedisOnce sync.Once
	sharedRedisErr  error
)

// GetRedisAddr returns host:port of a shared Redis container.
func GetRedisAddr(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedRedisOnce.Do(func() {
		sharedRedisAddr, sharedRedisErr = setupRedis()
	})

	if sharedRedisErr != nil {
		t.Fatalf("Failed to setup redis: %v", sharedRedisErr)
	}

	return sharedRedisAddr
}

func setupRedis() (string, error) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        RedisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start redis container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		return "", fmt.Errorf("failed to get container port: %w", err)
	}

	return host + ":" + port.Port(), nil
}
