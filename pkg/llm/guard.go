package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ekaya-inc/genbi-engine/pkg/retry"
)

// GuardConfig bounds how hard the engine leans on the provider.
type GuardConfig struct {
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration // per attempt; zero means none
	MaxRetries        int
	Breaker           CircuitBreakerConfig
}

// GuardedClient wraps a provider client with a token-bucket rate limiter,
// a circuit breaker, a per-attempt timeout and retries on transient errors.
type GuardedClient struct {
	inner   LLMClient
	limiter *rate.Limiter
	breaker *CircuitBreaker
	timeout time.Duration
	retry   *retry.Config
	logger  *zap.Logger
}

// NewGuardedClient wraps inner. A non-positive RequestsPerSecond disables
// rate limiting; MaxRetries of zero keeps every failure terminal.
func NewGuardedClient(inner LLMClient, cfg GuardConfig, logger *zap.Logger) *GuardedClient {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	var retryCfg *retry.Config
	if cfg.MaxRetries > 0 {
		retryCfg = retry.DefaultConfig(cfg.MaxRetries)
	}

	return &GuardedClient{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		breaker: NewCircuitBreaker(cfg.Breaker),
		timeout: cfg.Timeout,
		retry:   retryCfg,
		logger:  logger.Named("llm-guard"),
	}
}

func (g *GuardedClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
	return retry.DoIfRetryable(ctx, g.retry, func(ctx context.Context) (*GenerateResponseResult, error) {
		return g.attempt(ctx, prompt, systemMessage, temperature)
	})
}

func (g *GuardedClient) attempt(ctx context.Context, prompt, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
	if err := g.breaker.Allow(); err != nil {
		return nil, NewError(ErrorTypeEndpoint, "provider unavailable", false, err)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	result, err := g.inner.GenerateResponse(ctx, prompt, systemMessage, temperature)
	if err != nil {
		// Only provider-side trouble counts against the breaker.
		if IsRetryable(err) {
			g.breaker.RecordFailure()
			g.logger.Warn("LLM call failed",
				zap.String("breaker", g.breaker.State().String()),
				zap.Int("consecutive_failures", g.breaker.ConsecutiveFailures()),
				zap.Error(err))
		}
		return nil, err
	}
	g.breaker.RecordSuccess()
	return result, nil
}

func (g *GuardedClient) GetModel() string {
	return g.inner.GetModel()
}

func (g *GuardedClient) GetEndpoint() string {
	return g.inner.GetEndpoint()
}

var _ LLMClient = (*GuardedClient)(nil)
