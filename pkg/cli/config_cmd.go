package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/genbi-engine/pkg/config"
)

// secretsView lists which environment-only secrets are set. The secrets
// themselves are never printed.
type secretsView struct {
	CredentialsKey string `yaml:"credentials_key"`
	LLMAPIKey      string `yaml:"llm_api_key"`
	RedisPassword  string `yaml:"redis_password"`
	S3SecretKey    string `yaml:"s3_secret_access_key"`
}

type configView struct {
	config.Config `yaml:",inline"`
	Secrets       secretsView `yaml:"secrets"`
	Version       string      `yaml:"version"`
}

func newConfigCmd(configPath *string, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath, version)
			if err != nil {
				return err
			}
			return writeConfig(cmd.OutOrStdout(), cfg)
		},
	}
}

func writeConfig(w io.Writer, cfg *config.Config) error {
	redacted := cfg.Redacted()
	view := configView{
		Config: *redacted,
		Secrets: secretsView{
			CredentialsKey: redacted.CredentialsKey,
			LLMAPIKey:      redacted.LLM.APIKey,
			RedisPassword:  redacted.Redis.Password,
			S3SecretKey:    redacted.Uploads.S3SecretKey,
		},
		Version: cfg.Version,
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
