package locks_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/locks"
	"github.com/ekaya-inc/genbi-engine/pkg/testhelpers"
)

func TestRedisLocker_Integration_TwoClients(t *testing.T) {
	addr := testhelpers.GetRedisAddr(t)

	newLocker := func() *locks.RedisLocker {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		t.Cleanup(func() { _ = rdb.Close() })
		return locks.NewRedisLocker(rdb, time.Minute, zap.NewNop())
	}
	a, b := newLocker(), newLocker()
	name := "sync:" + uuid.NewString()

	release, err := a.Acquire(context.Background(), name)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err = b.Acquire(ctx, name)
	assert.ErrorIs(t, err, locks.ErrNotAcquired)

	release()

	release, err = b.Acquire(context.Background(), name)
	require.NoError(t, err)
	release()
}
