package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, "test:"), mr
}

func TestRedisLockerSerializesPerStory(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, 1, time.Minute)
	require.NoError(t, err)

	_, err = locker.Lock(ctx, 1, time.Minute)
	assert.ErrorIs(t, err, ErrTurnInFlight)

	// A different story is unaffected.
	other, err := locker.Lock(ctx, 2, time.Minute)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, unlock(ctx))

	_, err = locker.Lock(ctx, 1, time.Minute)
	assert.NoError(t, err, "released lock can be reacquired")
}

func TestRedisLockerExpiresWithTTL(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	_, err := locker.Lock(ctx, 1, 50*time.Millisecond)
	require.NoError(t, err)

	mr.FastForward(100 * time.Millisecond)

	_, err = locker.Lock(ctx, 1, time.Minute)
	assert.NoError(t, err, "a crashed holder's lock expires")
}

func TestRedisLockerUnlockOnlyReleasesOwnLock(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	staleUnlock, err := locker.Lock(ctx, 1, 50*time.Millisecond)
	require.NoError(t, err)

	// The first holder's lock expires and someone else takes it.
	mr.FastForward(100 * time.Millisecond)
	_, err = locker.Lock(ctx, 1, time.Minute)
	require.NoError(t, err)

	require.NoError(t, staleUnlock(ctx))

	_, err = locker.Lock(ctx, 1, time.Minute)
	assert.ErrorIs(t, err, ErrTurnInFlight, "stale unlock must not free the new holder's lock")
}

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, 1, time.Minute)
	require.NoError(t, err)

	_, err = locker.Lock(ctx, 1, time.Minute)
	assert.ErrorIs(t, err, ErrTurnInFlight)

	require.NoError(t, unlock(ctx))
	_, err = locker.Lock(ctx, 1, time.Minute)
	assert.NoError(t, err)
}
