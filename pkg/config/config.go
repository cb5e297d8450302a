package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for genbi-engine.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys, passwords) must only come from environment variables.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	LLM        LLMConfig        `yaml:"llm"`
	Connectors ConnectorsConfig `yaml:"connectors"`
	WorkQueue  WorkQueueConfig  `yaml:"workqueue"`
	Uploads    UploadsConfig    `yaml:"uploads"`
	Redis      RedisConfig      `yaml:"redis"`

	// CredentialsKey encrypts connection details at rest.
	// 32 bytes, base64 encoded. Generate with: openssl rand -base64 32
	CredentialsKey string `yaml:"-" env:"GENBI_CREDENTIALS_KEY"`

	Version string `yaml:"-"` // Set at load time
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	BindAddr        string        `yaml:"bind_addr" env:"BIND_ADDR" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"PORT" env-default:"3000"`
	Env             string        `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BasePath        string        `yaml:"base_path" env:"BASE_PATH" env-default:"/api/v1"`
	TLSCertPath     string        `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath      string        `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://localhost:8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
	LogLevel        string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

// Addr returns the listen address.
func (s *ServerConfig) Addr() string {
	return s.BindAddr + ":" + s.Port
}

// TLSEnabled reports whether both certificate and key are configured.
func (s *ServerConfig) TLSEnabled() bool {
	return s.TLSCertPath != "" && s.TLSKeyPath != ""
}

// DatabaseConfig holds the embedded SQLite store settings.
type DatabaseConfig struct {
	Path         string        `yaml:"path" env:"DATABASE_PATH" env-default:"./data/genbi.db"`
	MaxOpenConns int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS" env-default:"4"`
	BusyTimeout  time.Duration `yaml:"busy_timeout" env:"DATABASE_BUSY_TIMEOUT" env-default:"5s"`
}

// LLMConfig configures the SQL and insight generation model.
type LLMConfig struct {
	Provider    string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"anthropic"`
	Model       string  `yaml:"model" env:"LLM_MODEL" env-default:"claude-3-opus-20240229"`
	BaseURL     string  `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	APIKey      string  `yaml:"-" env:"LLM_API_KEY"`
	MaxTokens   int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"4000"`
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0"`

	Timeout           time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"60s"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"LLM_REQUESTS_PER_SECOND" env-default:"2"`
	Burst             int           `yaml:"burst" env:"LLM_BURST" env-default:"4"`
	MaxRetries        int           `yaml:"max_retries" env:"LLM_MAX_RETRIES" env-default:"0"`

	CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold" env:"LLM_CIRCUIT_BREAKER_THRESHOLD" env-default:"5"`
	CircuitBreakerReset     time.Duration `yaml:"circuit_breaker_reset" env:"LLM_CIRCUIT_BREAKER_RESET" env-default:"30s"`
}

// ConnectorsConfig controls simulated delays and the opt-in live adapters.
type ConnectorsConfig struct {
	Live           bool          `yaml:"live" env:"CONNECTORS_LIVE" env-default:"false"`
	ConnectDelay   time.Duration `yaml:"connect_delay" env:"CONNECTORS_CONNECT_DELAY" env-default:"2s"`
	FileDelay      time.Duration `yaml:"file_delay" env:"CONNECTORS_FILE_DELAY" env-default:"1s"`
	ProbeDelay     time.Duration `yaml:"probe_delay" env:"CONNECTORS_PROBE_DELAY" env-default:"500ms"`
	SyncStartDelay time.Duration `yaml:"sync_start_delay" env:"CONNECTORS_SYNC_START_DELAY" env-default:"1s"`
	SyncTableDelay time.Duration `yaml:"sync_table_delay" env:"CONNECTORS_SYNC_TABLE_DELAY" env-default:"1s"`
	QueryDelay     time.Duration `yaml:"query_delay" env:"CONNECTORS_QUERY_DELAY" env-default:"1s"`
	QueryRowLimit  int           `yaml:"query_row_limit" env:"CONNECTORS_QUERY_ROW_LIMIT" env-default:"1000"`
}

// WorkQueueConfig bounds background task concurrency.
type WorkQueueConfig struct {
	MaxConcurrentLLM  int `yaml:"max_concurrent_llm" env:"WORKQUEUE_MAX_CONCURRENT_LLM" env-default:"2"`
	MaxConcurrentData int `yaml:"max_concurrent_data" env:"WORKQUEUE_MAX_CONCURRENT_DATA" env-default:"8"`
}

// UploadsConfig selects where uploaded files are stored.
// S3 is used when S3Bucket is set, the local directory otherwise.
type UploadsConfig struct {
	Dir         string `yaml:"dir" env:"UPLOADS_DIR" env-default:"./uploads"`
	MaxSizeMB   int64  `yaml:"max_size_mb" env:"UPLOADS_MAX_SIZE_MB" env-default:"50"`
	S3Bucket    string `yaml:"s3_bucket" env:"UPLOADS_S3_BUCKET" env-default:""`
	S3Region    string `yaml:"s3_region" env:"UPLOADS_S3_REGION" env-default:"us-east-1"`
	S3Endpoint  string `yaml:"s3_endpoint" env:"UPLOADS_S3_ENDPOINT" env-default:""`
	S3Prefix    string `yaml:"s3_prefix" env:"UPLOADS_S3_PREFIX" env-default:"uploads/"`
	S3AccessKey string `yaml:"s3_access_key_id" env:"UPLOADS_S3_ACCESS_KEY_ID" env-default:""`
	S3SecretKey string `yaml:"-" env:"UPLOADS_S3_SECRET_ACCESS_KEY"`
}

// MaxSizeBytes returns the upload size limit in bytes.
func (u *UploadsConfig) MaxSizeBytes() int64 {
	return u.MaxSizeMB << 20
}

// RedisConfig enables the distributed sync lock when Host is set.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Load reads configuration from path with environment variable overrides.
// A missing file is not an error: environment variables and defaults apply.
func Load(path, version string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	cfg.Version = version

	// ANTHROPIC_API_KEY is accepted as an alias for the default provider.
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if err := c.validateTLS(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("invalid llm.provider %q: must be anthropic or openai", c.LLM.Provider)
	}

	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative")
	}
	if c.WorkQueue.MaxConcurrentLLM <= 0 || c.WorkQueue.MaxConcurrentData <= 0 {
		return fmt.Errorf("workqueue limits must be positive")
	}
	if c.Uploads.MaxSizeMB <= 0 {
		return fmt.Errorf("uploads.max_size_mb must be positive")
	}
	if c.Connectors.QueryRowLimit <= 0 {
		return fmt.Errorf("connectors.query_row_limit must be positive")
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("server.base_path must start with /")
	}
	c.Server.BasePath = strings.TrimRight(c.Server.BasePath, "/")
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.Server.TLSCertPath != ""
	keySet := c.Server.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.Server.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.Server.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// Redacted returns a copy of the configuration safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	redact := func(s string) string {
		if s == "" {
			return ""
		}
		return "[REDACTED]"
	}
	out.CredentialsKey = redact(c.CredentialsKey)
	out.LLM.APIKey = redact(c.LLM.APIKey)
	out.Redis.Password = redact(c.Redis.Password)
	out.Uploads.S3SecretKey = redact(c.Uploads.S3SecretKey)
	return &out
}
