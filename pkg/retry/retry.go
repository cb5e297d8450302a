// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0; 0.1 spreads each delay by +/-10%
}

// DefaultConfig returns a backoff of 500ms doubling up to 10s with 10% jitter.
func DefaultConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:   maxRetries,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// delay returns the wait before retry number attempt (0-based).
func (c *Config) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 0; i < attempt; i++ {
		d *= c.Multiplier
		if d >= float64(c.MaxDelay) {
			d = float64(c.MaxDelay)
			break
		}
	}
	if c.JitterFactor > 0 {
		d += d * c.JitterFactor * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}

// Retryable is implemented by errors that know whether they are transient.
type Retryable interface {
	IsRetryable() bool
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"timed out",
	"temporary failure",
	"too many requests",
	"service unavailable",
	"rate limit",
}

// IsRetryable reports whether err is worth retrying. Errors implementing
// Retryable decide for themselves; otherwise known transient messages match.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var r Retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// DoIfRetryable calls fn until it succeeds, returns a permanent error, or
// MaxRetries retries are used up. A nil cfg runs fn once.
func DoIfRetryable[T any](ctx context.Context, cfg *Config, fn func(ctx context.Context) (T, error)) (T, error) {
	maxRetries := 0
	if cfg != nil {
		maxRetries = cfg.MaxRetries
	}

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil || attempt >= maxRetries || !IsRetryable(err) {
			return result, err
		}

		timer := time.NewTimer(cfg.delay(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		}
	}
}
