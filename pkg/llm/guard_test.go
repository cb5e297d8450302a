package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGuardedClient_RetriesTransientErrors(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(context.Context, string, string, float64) (*GenerateResponseResult, error) {
		if mock.GenerateResponseCalls() < 2 {
			return nil, NewError(ErrorTypeEndpoint, "server error", true, nil)
		}
		return &GenerateResponseResult{Content: "SELECT 1"}, nil
	}

	g := NewGuardedClient(mock, GuardConfig{MaxRetries: 2}, zap.NewNop())
	g.retry.InitialDelay = time.Millisecond

	result, err := g.GenerateResponse(context.Background(), "q", "s", 0)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", result.Content)
	assert.Equal(t, 2, mock.GenerateResponseCalls())
}

func TestGuardedClient_NoRetryByDefault(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(context.Context, string, string, float64) (*GenerateResponseResult, error) {
		return nil, NewError(ErrorTypeEndpoint, "server error", true, nil)
	}

	g := NewGuardedClient(mock, GuardConfig{}, zap.NewNop())

	_, err := g.GenerateResponse(context.Background(), "q", "s", 0)
	require.Error(t, err)
	assert.Equal(t, 1, mock.GenerateResponseCalls())
}

func TestGuardedClient_BreakerOpensOnTransientFailures(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(context.Context, string, string, float64) (*GenerateResponseResult, error) {
		return nil, NewError(ErrorTypeEndpoint, "server error", true, nil)
	}

	g := NewGuardedClient(mock, GuardConfig{
		Breaker: CircuitBreakerConfig{Threshold: 2, ResetAfter: time.Hour},
	}, zap.NewNop())

	for i := 0; i < 2; i++ {
		_, _ = g.GenerateResponse(context.Background(), "q", "s", 0)
	}
	_, err := g.GenerateResponse(context.Background(), "q", "s", 0)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, 2, mock.GenerateResponseCalls())
}

func TestGuardedClient_PermanentErrorsDoNotTripBreaker(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(context.Context, string, string, float64) (*GenerateResponseResult, error) {
		return nil, NewError(ErrorTypeAuth, "authentication failed", false, nil)
	}

	g := NewGuardedClient(mock, GuardConfig{
		Breaker: CircuitBreakerConfig{Threshold: 1, ResetAfter: time.Hour},
	}, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := g.GenerateResponse(context.Background(), "q", "s", 0)
		require.Error(t, err)
	}
	assert.Equal(t, CircuitClosed, g.breaker.State())
	assert.Equal(t, 3, mock.GenerateResponseCalls())
}

func TestGuardedClient_AppliesTimeout(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, _ string, _ string, _ float64) (*GenerateResponseResult, error) {
		<-ctx.Done()
		return nil, ClassifyError(ctx.Err())
	}

	g := NewGuardedClient(mock, GuardConfig{Timeout: 10 * time.Millisecond}, zap.NewNop())

	_, err := g.GenerateResponse(context.Background(), "q", "s", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestGuardedClient_RateLimiterHonoursContext(t *testing.T) {
	mock := NewMockLLMClientWithResponse("ok")
	g := NewGuardedClient(mock, GuardConfig{RequestsPerSecond: 0.001, Burst: 1}, zap.NewNop())

	_, err := g.GenerateResponse(context.Background(), "q", "s", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.GenerateResponse(ctx, "q", "s", 0)
	require.Error(t, err)
	assert.Equal(t, 1, mock.GenerateResponseCalls())
}
