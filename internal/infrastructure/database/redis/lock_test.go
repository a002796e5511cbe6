package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
)

func newLockTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&RedisConfig{Mode: "standalone", Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestFileLock_TryAcquireAndRelease(t *testing.T) {
	client, mr := newLockTestClient(t)
	ctx := context.Background()

	lock := NewFileLock(client, "abc123", logging.NewNopLogger(), WithRefreshInterval(time.Hour))
	ok, err := lock.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("lifelike:annotate-lock:abc123"))

	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists("lifelike:annotate-lock:abc123"))
}

func TestFileLock_ContendedFileIsNotAcquired(t *testing.T) {
	client, _ := newLockTestClient(t)
	ctx := context.Background()

	first := NewFileLock(client, "abc123", logging.NewNopLogger(), WithRefreshInterval(time.Hour))
	ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer first.Release(ctx)

	second := NewFileLock(client, "abc123", logging.NewNopLogger(), WithRefreshInterval(time.Hour))
	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileLock_DifferentFilesDoNotContend(t *testing.T) {
	client, _ := newLockTestClient(t)
	ctx := context.Background()

	first := NewFileLock(client, "file-a", logging.NewNopLogger(), WithRefreshInterval(time.Hour))
	ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer first.Release(ctx)

	second := NewFileLock(client, "file-b", logging.NewNopLogger(), WithRefreshInterval(time.Hour))
	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	defer second.Release(ctx)
}

func TestFileLock_ReleaseAfterExpiryReportsNotHeld(t *testing.T) {
	client, mr := newLockTestClient(t)
	ctx := context.Background()

	lock := NewFileLock(client, "abc123", logging.NewNopLogger(),
		WithLockTTL(50*time.Millisecond), WithRefreshInterval(time.Hour))
	ok, err := lock.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(100 * time.Millisecond)

	err = lock.Release(ctx)
	assert.ErrorIs(t, err, ErrLockNotHeld)
}

func TestFileLock_ExtendKeepsLockAlive(t *testing.T) {
	client, mr := newLockTestClient(t)
	ctx := context.Background()

	lock := NewFileLock(client, "abc123", logging.NewNopLogger(),
		WithLockTTL(time.Second), WithRefreshInterval(time.Hour))
	ok, err := lock.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer lock.Release(ctx)

	extended, err := lock.Extend(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, extended)

	ttl := mr.TTL("lifelike:annotate-lock:abc123")
	assert.Greater(t, ttl, time.Second)
}
