package postgres

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/genbi-engine/pkg/config"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Schema   string
	SSLMode  string // "disable", "prefer", "require"
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// FromDetails builds a Config from relational connection details.
func FromDetails(details models.ConnectionDetails) (*Config, error) {
	rc, ok := details.(*models.RelationalConnection)
	if !ok {
		return nil, fmt.Errorf("expected relational connection details, got %T", details)
	}
	if fields := rc.MissingFields(); len(fields) > 0 {
		return nil, fmt.Errorf("missing required connection details: %v", fields)
	}

	cfg := &Config{
		Host:     rc.Host,
		Port:     rc.Port.Int(),
		User:     rc.Username,
		Password: rc.Password,
		Database: rc.Database,
		Schema:   rc.Schema,
		SSLMode:  "prefer",
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if rc.SSL {
		cfg.SSLMode = "require"
	}
	return cfg, nil
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields are URL-escaped so passwords containing @, /, # or ?
// do not break URL parsing. Loopback hosts are rewritten when running in Docker.
func buildConnectionString(cfg *Config) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	host := config.ResolveConnectorHost(cfg.Host)

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		host,
		cfg.Port,
		url.QueryEscape(cfg.Database),
		sslMode,
	)
}
