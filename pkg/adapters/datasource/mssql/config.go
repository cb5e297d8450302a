package mssql

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/ekaya-inc/genbi-engine/pkg/config"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

// DefaultPort is the default SQL Server port.
const DefaultPort = 1433

// Config contains SQL Server connection options. Only SQL authentication
// is supported.
type Config struct {
	Host                   string
	Port                   int
	Username               string
	Password               string
	Database               string
	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int // seconds
}

// FromDetails builds a Config from relational connection details.
// The ssl flag turns on encryption; certificates are trusted when it is off.
func FromDetails(details models.ConnectionDetails) (*Config, error) {
	rc, ok := details.(*models.RelationalConnection)
	if !ok {
		return nil, fmt.Errorf("expected relational connection details, got %T", details)
	}
	if fields := rc.MissingFields(); len(fields) > 0 {
		return nil, fmt.Errorf("missing required connection details: %v", fields)
	}

	cfg := &Config{
		Host:                   rc.Host,
		Port:                   rc.Port.Int(),
		Username:               rc.Username,
		Password:               rc.Password,
		Database:               rc.Database,
		Encrypt:                rc.SSL,
		TrustServerCertificate: !rc.SSL,
		ConnectionTimeout:      15,
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	return cfg, nil
}

// connectionURL renders a sqlserver:// URL with escaped credentials.
func (c *Config) connectionURL() string {
	query := url.Values{}
	query.Add("database", c.Database)
	query.Add("encrypt", strconv.FormatBool(c.Encrypt))
	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if c.ConnectionTimeout > 0 {
		query.Add("connection timeout", strconv.Itoa(c.ConnectionTimeout))
	}

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", config.ResolveConnectorHost(c.Host), c.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}
