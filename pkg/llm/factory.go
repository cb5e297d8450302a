package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/config"
)

// NewClientFromConfig builds the configured provider client wrapped in a
// GuardedClient. Without an API key it returns a client whose calls fail
// with ErrNotConfigured, so natural-language queries fail cleanly while the
// rest of the service keeps working.
func NewClientFromConfig(cfg *config.LLMConfig, logger *zap.Logger) (LLMClient, error) {
	clientCfg := &Config{
		Endpoint:  cfg.BaseURL,
		Model:     cfg.Model,
		APIKey:    cfg.APIKey,
		MaxTokens: cfg.MaxTokens,
	}

	var (
		inner LLMClient
		err   error
	)
	switch {
	case cfg.Provider == "anthropic" && cfg.APIKey == "":
		logger.Warn("No LLM API key configured; natural language queries will fail")
		inner = &unconfiguredClient{model: cfg.Model}
	case cfg.Provider == "anthropic":
		inner, err = NewAnthropicClient(clientCfg, logger)
	case cfg.Provider == "openai":
		inner, err = NewOpenAIClient(clientCfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	return NewGuardedClient(inner, GuardConfig{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Timeout:           cfg.Timeout,
		MaxRetries:        cfg.MaxRetries,
		Breaker: CircuitBreakerConfig{
			Threshold:  cfg.CircuitBreakerThreshold,
			ResetAfter: cfg.CircuitBreakerReset,
		},
	}, logger), nil
}

type unconfiguredClient struct {
	model string
}

func (c *unconfiguredClient) GenerateResponse(context.Context, string, string, float64) (*GenerateResponseResult, error) {
	return nil, ClassifyError(ErrNotConfigured)
}

func (c *unconfiguredClient) GetModel() string    { return c.model }
func (c *unconfiguredClient) GetEndpoint() string { return "" }
