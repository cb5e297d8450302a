package locks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisKeyPrefix      = "genbi:lock:"
	defaultLockTTL      = 30 * time.Second
	defaultPollInterval = 50 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by another process is never released by us.
//
// KEYS[1] = lock key
// ARGV[1] = owner token
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker serializes holders across processes with SET NX PX.
// A holder that dies loses the lock after the TTL.
type RedisLocker struct {
	rdb          *redis.Client
	ttl          time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewRedisLocker creates a locker on rdb. A zero ttl uses 30s.
func NewRedisLocker(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{
		rdb:          rdb,
		ttl:          ttl,
		pollInterval: defaultPollInterval,
		logger:       logger.Named("redis-lock"),
	}
}

func (r *RedisLocker) Acquire(ctx context.Context, name string) (func(), error) {
	key := redisKeyPrefix + name
	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate lock token: %w", err)
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		ok, err := r.rdb.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}

	return func() {
		// Release must not depend on the caller's (possibly cancelled) context.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.rdb, []string{key}, token).Err(); err != nil {
			r.logger.Warn("Failed to release lock", zap.String("lock", name), zap.Error(err))
		}
	}, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

var _ Locker = (*RedisLocker)(nil)
