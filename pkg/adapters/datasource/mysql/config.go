package mysql

import (
	"fmt"
	"net"
	"strconv"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/genbi-engine/pkg/config"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

// DefaultPort is the default MySQL port.
const DefaultPort = 3306

// Config contains MySQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      bool
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
		TLS:      rc.SSL,
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	return cfg, nil
}

// DSN renders the driver DSN. The driver handles escaping of credentials.
func (c *Config) DSN() string {
	dc := driver.NewConfig()
	dc.User = c.User
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(config.ResolveConnectorHost(c.Host), strconv.Itoa(c.Port))
	dc.DBName = c.Database
	dc.ParseTime = true
	dc.Timeout = 10 * time.Second
	if c.TLS {
		dc.TLSConfig = "true"
	}
	return dc.FormatDSN()
}
