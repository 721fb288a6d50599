package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRedisManager(t *testing.T) (*miniredis.Miniredis, *RedisManager) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisManager(client, "test:", zap.NewNop())
}

func TestRedisManager_AcquireRelease(t *testing.T) {
	_, mgr := setupRedisManager(t)
	ctx := context.Background()

	token, err := mgr.Acquire(ctx, "contact-1", time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, mgr.Release(ctx, "contact-1", token))

	// released lock can be re-acquired immediately
	token2, err := mgr.Acquire(ctx, "contact-1", time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
}

func TestRedisManager_ContentionDeniesBusy(t *testing.T) {
	_, mgr := setupRedisManager(t)

	_, err := mgr.Acquire(context.Background(), "contact-1", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	_, err = mgr.Acquire(ctx, "contact-1", time.Second)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestRedisManager_LeaseExpiry(t *testing.T) {
	mr, mgr := setupRedisManager(t)
	ctx := context.Background()

	token, err := mgr.Acquire(ctx, "contact-1", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	// expired lease is absent; a new holder takes over
	token2, err := mgr.Acquire(ctx, "contact-1", time.Second)
	require.NoError(t, err)
	require.NotEqual(t, token, token2)

	// the old holder's release must not remove the new lease
	assert.ErrorIs(t, mgr.Release(ctx, "contact-1", token), ErrNotHeld)
	require.NoError(t, mgr.Release(ctx, "contact-1", token2))
}

func TestRedisManager_DifferentContactsIndependent(t *testing.T) {
	_, mgr := setupRedisManager(t)
	ctx := context.Background()

	_, err := mgr.Acquire(ctx, "contact-1", time.Second)
	require.NoError(t, err)

	_, err = mgr.Acquire(ctx, "contact-2", time.Second)
	assert.NoError(t, err)
}

func TestMemoryManager_AcquireRelease(t *testing.T) {
	mgr := NewMemoryManager()
	ctx := context.Background()

	token, err := mgr.Acquire(ctx, "contact-1", time.Second)
	require.NoError(t, err)

	require.NoError(t, mgr.Release(ctx, "contact-1", token))
	assert.ErrorIs(t, mgr.Release(ctx, "contact-1", token), ErrNotHeld)
}

func TestMemoryManager_LeaseExpiry(t *testing.T) {
	now := time.Now()
	mgr := NewMemoryManager().WithClock(func() time.Time { return now })
	ctx := context.Background()

	token, err := mgr.Acquire(ctx, "contact-1", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)

	token2, err := mgr.Acquire(ctx, "contact-1", time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
	assert.ErrorIs(t, mgr.Release(ctx, "contact-1", token), ErrNotHeld)
}

func TestMemoryManager_MutualExclusion(t *testing.T) {
	mgr := NewMemoryManager()

	const attempts = 16
	var wg sync.WaitGroup
	var holders atomic.Int32
	granted := 0
	var mu sync.Mutex

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			token, err := mgr.Acquire(ctx, "contact-1", time.Second)
			if err != nil {
				return
			}
			if holders.Add(1) > 1 {
				t.Error("two goroutines held the same contact lock")
			}
			time.Sleep(time.Millisecond)
			holders.Add(-1)
			mu.Lock()
			granted++
			mu.Unlock()
			_ = mgr.Release(context.Background(), "contact-1", token)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, granted, 1)
}
