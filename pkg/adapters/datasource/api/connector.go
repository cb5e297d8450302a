// Package api is the live connector for HTTP endpoints returning JSON records.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource/memtable"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
	"github.com/ekaya-inc/genbi-engine/pkg/tabular"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 50 << 20

const defaultTableName = "data"

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// Connector fetches an endpoint and serves its records from memory.
type Connector struct {
	cfg     *models.APIConnection
	client  *http.Client
	store   *memtable.Store
	table   string
	latency time.Duration
	status  int
}

// Open fetches the endpoint and loads the records.
func Open(ctx context.Context, details models.ConnectionDetails, opts datasource.Options) (*Connector, error) {
	cfg, ok := details.(*models.APIConnection)
	if !ok || cfg.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Connector{cfg: cfg, client: client, table: TableName(cfg.URL)}
	records, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	store, err := memtable.New(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.Load(ctx, c.table, tabular.FromRecords(records)); err != nil {
		store.Close()
		return nil, err
	}
	c.store = store
	return c, nil
}

// TableName derives a table name from the last path segment of the URL.
func TableName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultTableName
	}
	name := nonIdent.ReplaceAllString(path.Base(strings.TrimRight(u.Path, "/")), "_")
	name = strings.Trim(name, "_")
	if name == "" || name == "." {
		return defaultTableName
	}
	return strings.ToLower(name)
}

func (c *Connector) fetch(ctx context.Context) ([]json.RawMessage, error) {
	method := strings.ToUpper(c.cfg.Method)
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.latency = time.Since(start)
	c.status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return tabular.RecordsFromJSON(body, c.cfg.DataPath)
}

// TestConnection reports the fetch latency and the table it produced.
func (c *Connector) TestConnection(ctx context.Context) (*datasource.ConnectionInfo, error) {
	return &datasource.ConnectionInfo{
		Message: "API connection successful",
		Latency: c.latency,
		Details: map[string]any{
			"latency":   c.latency.Milliseconds(),
			"status":    c.status,
			"endpoints": []string{c.table},
		},
	}, nil
}

func (c *Connector) DiscoverSchema(ctx context.Context) (*datasource.DiscoveredSchema, error) {
	return c.store.Schema(), nil
}

func (c *Connector) CountTableRecords(ctx context.Context, table string) (int64, error) {
	return c.store.Count(ctx, table)
}

func (c *Connector) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
	return c.store.Query(ctx, sqlQuery, limit)
}

func (c *Connector) Close() error {
	return c.store.Close()
}

var (
	_ datasource.ConnectionTester = (*Connector)(nil)
	_ datasource.SchemaDiscoverer = (*Connector)(nil)
	_ datasource.QueryExecutor    = (*Connector)(nil)
)
