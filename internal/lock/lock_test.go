package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teambilling/internal/domain"
)

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr(), "", 0)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create Redis client: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedis(client, time.Minute, "test"), mr
}

func TestRedis_AcquireRelease(t *testing.T) {
	locker, mr := setupRedis(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, TenantKey(1))
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:tenant:1"))

	_, err = locker.Acquire(ctx, TenantKey(1))
	assert.True(t, errors.Is(err, domain.ErrLockNotAcquired))

	// other tenants are independent
	releaseOther, err := locker.Acquire(ctx, TenantKey(2))
	require.NoError(t, err)
	require.NoError(t, releaseOther(ctx))

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("test:tenant:1"))

	release, err = locker.Acquire(ctx, TenantKey(1))
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestRedis_ReleaseAfterExpiryKeepsNewOwner(t *testing.T) {
	locker, mr := setupRedis(t)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, TenantKey(5))
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	fresh, err := locker.Acquire(ctx, TenantKey(5))
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists("test:tenant:5"), "stale release must not drop the new owner's lock")

	require.NoError(t, fresh(ctx))
	assert.False(t, mr.Exists("test:tenant:5"))
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "invalid://url", "", 0)
	assert.Error(t, err)
}

func TestLocal(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocal(time.Minute)
	l.now = func() time.Time { return now }

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "k")
	assert.True(t, errors.Is(err, domain.ErrLockNotAcquired))

	require.NoError(t, release(ctx))
	release, err = l.Acquire(ctx, "k")
	require.NoError(t, err)

	t.Run("Expiry", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		next, err := l.Acquire(ctx, "k")
		require.NoError(t, err)

		// the expired holder cannot release the new lock
		require.NoError(t, release(ctx))
		_, err = l.Acquire(ctx, "k")
		assert.True(t, errors.Is(err, domain.ErrLockNotAcquired))
		require.NoError(t, next(ctx))
	})
}
