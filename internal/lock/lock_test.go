package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client), mr
}

func TestLocker_TryLockIsExclusive(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	_, ok, err = locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "k", token))
	_, ok, err = locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocker_ReleaseIgnoresForeignToken(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, locker.Release(ctx, "k", "someone-else"))
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, token, got)
}

func TestLocker_AcquireWaitsForExpiry(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	_, ok, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.Acquire(ctx, "k", time.Second, 20*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = locker.Acquire(ctx, "k", time.Second, 20*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocker_NilIsDisabled(t *testing.T) {
	var locker *Locker
	assert.False(t, locker.Enabled())
	assert.NoError(t, locker.Release(context.Background(), "k", "t"))
	assert.Nil(t, NewLocker(nil))
}
