package distributed

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 테스트용 DB
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available:", err)
	}
	client.FlushDB(ctx)

	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisLock_AcquireAndRelease(t *testing.T) {
	manager := NewRedisLockManager(setupRedisClient(t))
	ctx := context.Background()

	lock, err := manager.AcquireLock(ctx, "test:lock", "instance1", 5*time.Second)
	require.NoError(t, err)

	_, err = manager.AcquireLock(ctx, "test:lock", "instance2", 5*time.Second)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, lock.Release(ctx))

	again, err := manager.AcquireLock(ctx, "test:lock", "instance3", 5*time.Second)
	require.NoError(t, err)
	assert.NoError(t, again.Release(ctx))
}

func TestRedisLock_ReleaseAfterTakeover(t *testing.T) {
	manager := NewRedisLockManager(setupRedisClient(t))
	ctx := context.Background()

	stale, err := manager.AcquireLock(ctx, "test:safe", "instance1", 200*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(300 * time.Millisecond)

	current, err := manager.AcquireLock(ctx, "test:safe", "instance2", 5*time.Second)
	require.NoError(t, err)
	defer current.Release(ctx)

	assert.ErrorIs(t, stale.Release(ctx), ErrLockNotHeld)
	assert.ErrorIs(t, stale.Extend(ctx, time.Second), ErrLockNotHeld)

	held, err := current.IsHeld(ctx)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestRedisLock_TryLockWithRetry(t *testing.T) {
	manager := NewRedisLockManager(setupRedisClient(t))
	ctx := context.Background()

	first, err := manager.AcquireLock(ctx, "test:retry", "instance1", 5*time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(300 * time.Millisecond)
		first.Release(context.Background())
	}()

	second, err := manager.TryLockWithRetry(ctx, "test:retry", "instance2", 5*time.Second, 5, 200*time.Millisecond)
	require.NoError(t, err)
	defer second.Release(ctx)

	held, err := second.IsHeld(ctx)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestRedisLock_ConcurrentAcquire(t *testing.T) {
	manager := NewRedisLockManager(setupRedisClient(t))

	var acquired atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			_, err := manager.AcquireLock(context.Background(), "test:concurrent", fmt.Sprintf("instance%d", id), 2*time.Second)
			if err == nil {
				acquired.Add(1)
			}
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Equal(t, int32(1), acquired.Load())
}

func TestLease_RenewsAndReleases(t *testing.T) {
	client := setupRedisClient(t)
	manager := NewRedisLockManager(client)
	ctx := context.Background()

	lease, err := AcquireLease(ctx, manager, "test:lease", 300*time.Millisecond, 0, zap.NewNop())
	require.NoError(t, err)

	// outlives the original ttl only if renewal works
	time.Sleep(700 * time.Millisecond)

	_, err = manager.AcquireLock(ctx, "test:lease", "intruder", time.Second)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, lease.Release(ctx))
	assert.NoError(t, lease.Release(ctx))

	select {
	case <-lease.Lost():
		t.Fatal("released lease must not report loss")
	default:
	}

	other, err := manager.AcquireLock(ctx, "test:lease", "next", time.Second)
	require.NoError(t, err)
	assert.NoError(t, other.Release(ctx))
}

func TestLease_ReportsLoss(t *testing.T) {
	client := setupRedisClient(t)
	manager := NewRedisLockManager(client)
	ctx := context.Background()

	lease, err := AcquireLease(ctx, manager, "test:lease:lost", 300*time.Millisecond, 0, zap.NewNop())
	require.NoError(t, err)
	defer lease.Release(ctx)

	require.NoError(t, client.Set(ctx, "test:lease:lost", "someone-else", time.Minute).Err())

	select {
	case <-lease.Lost():
	case <-time.After(time.Second):
		t.Fatal("expected lease loss to be reported")
	}
}

func TestLease_WaitsForPreviousOwner(t *testing.T) {
	client := setupRedisClient(t)
	manager := NewRedisLockManager(client)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "test:lease:wait", "old-instance", 200*time.Millisecond).Err())

	_, err := AcquireLease(ctx, manager, "test:lease:wait", 300*time.Millisecond, 0, zap.NewNop())
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	lease, err := AcquireLease(ctx, manager, "test:lease:wait", 300*time.Millisecond, time.Second, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, lease.Release(ctx))
}

func TestLease_ReportsLossWhenRedisUnreachable(t *testing.T) {
	setupRedisClient(t)

	// separate client so closing it does not affect the cleanup of the shared one
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	manager := NewRedisLockManager(client)
	ctx := context.Background()

	lease, err := AcquireLease(ctx, manager, "test:lease:unreachable", 300*time.Millisecond, 0, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, client.Close())

	select {
	case <-lease.Lost():
	case <-time.After(2 * time.Second):
		t.Fatal("expected lease loss once the ttl passed without renewal")
	}

	// the key cannot be deleted over the closed client
	assert.Error(t, lease.Release(ctx))
}
