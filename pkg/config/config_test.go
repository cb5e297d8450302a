package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "3000"
  env: "test"
database:
  path: "/var/lib/genbi/genbi.db"
llm:
  provider: "openai"
  model: "gpt-4o"
connectors:
  live: true
  connect_delay: 250ms
`)

	t.Setenv("PORT", "4000")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := Load(path, "test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "4000" {
		t.Errorf("expected Port=4000 (from env), got %s", cfg.Server.Port)
	}
	if cfg.Server.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Server.Env)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.Database.Path != "/var/lib/genbi/genbi.db" {
		t.Errorf("expected Database.Path from yaml, got %s", cfg.Database.Path)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o" {
		t.Errorf("expected openai/gpt-4o from yaml, got %s/%s", cfg.LLM.Provider, cfg.LLM.Model)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("expected APIKey from env, got %q", cfg.LLM.APIKey)
	}
	if !cfg.Connectors.Live {
		t.Error("expected Connectors.Live=true from yaml")
	}
	if cfg.Connectors.ConnectDelay != 250*time.Millisecond {
		t.Errorf("expected ConnectDelay=250ms, got %s", cfg.Connectors.ConnectDelay)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "dev")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("expected default port 3000, got %s", cfg.Server.Port)
	}
	if cfg.Server.BasePath != "/api/v1" {
		t.Errorf("expected default base path /api/v1, got %s", cfg.Server.BasePath)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.Model != "claude-3-opus-20240229" {
		t.Errorf("unexpected llm defaults: %s/%s", cfg.LLM.Provider, cfg.LLM.Model)
	}
	if cfg.LLM.MaxTokens != 4000 {
		t.Errorf("expected max tokens 4000, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.LLM.MaxRetries != 0 {
		t.Errorf("expected no retries by default, got %d", cfg.LLM.MaxRetries)
	}
	if cfg.LLM.APIKey != "anthropic-key" {
		t.Errorf("expected ANTHROPIC_API_KEY fallback, got %q", cfg.LLM.APIKey)
	}
	if cfg.Connectors.ProbeDelay != 500*time.Millisecond {
		t.Errorf("expected probe delay 500ms, got %s", cfg.Connectors.ProbeDelay)
	}
	if cfg.Uploads.MaxSizeBytes() != 50<<20 {
		t.Errorf("expected 50MB upload limit, got %d", cfg.Uploads.MaxSizeBytes())
	}
	if len(cfg.Server.CORSOrigins) != 2 {
		t.Errorf("expected 2 default CORS origins, got %v", cfg.Server.CORSOrigins)
	}
}

func TestLoad_InvalidProvider(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: "bard"
`)
	_, err := Load(path, "dev")
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "llm.provider") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_TLSRequiresBothFiles(t *testing.T) {
	t.Setenv("TLS_CERT_PATH", "/nonexistent/cert.pem")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "dev")
	if err == nil {
		t.Fatal("expected error when only cert path is set")
	}
	if !strings.Contains(err.Error(), "must be provided together") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_TrimsBasePath(t *testing.T) {
	cfg := &Config{
		Server:     ServerConfig{BasePath: "/api/v1/"},
		LLM:        LLMConfig{Provider: "anthropic", MaxTokens: 4000},
		WorkQueue:  WorkQueueConfig{MaxConcurrentLLM: 1, MaxConcurrentData: 1},
		Uploads:    UploadsConfig{MaxSizeMB: 1},
		Connectors: ConnectorsConfig{QueryRowLimit: 10},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if cfg.Server.BasePath != "/api/v1" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.Server.BasePath)
	}
}

func TestRedacted(t *testing.T) {
	cfg := &Config{CredentialsKey: "secret", LLM: LLMConfig{APIKey: "sk"}}
	red := cfg.Redacted()

	if red.CredentialsKey != "[REDACTED]" || red.LLM.APIKey != "[REDACTED]" {
		t.Errorf("secrets not redacted: %+v", red)
	}
	if red.Redis.Password != "" {
		t.Errorf("empty secrets should stay empty, got %q", red.Redis.Password)
	}
	if cfg.LLM.APIKey != "sk" {
		t.Error("Redacted must not modify the original")
	}
}
