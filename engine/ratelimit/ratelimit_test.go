package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRedisCounter(t *testing.T) (*miniredis.Miniredis, *RedisCounter) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisCounter(client, "test:", zap.NewNop())
}

func TestWindowKind_BucketStart(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC), WindowHourly.BucketStart(at))
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), WindowDaily.BucketStart(at))
	assert.Equal(t, time.Hour, WindowHourly.Length())
	assert.Equal(t, 24*time.Hour, WindowDaily.Length())
}

func TestRedisCounter_IncrementAndPeek(t *testing.T) {
	_, counter := setupRedisCounter(t)
	ctx := context.Background()

	n, err := counter.Increment(ctx, "contact-1", WindowHourly)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = counter.Increment(ctx, "contact-1", WindowHourly)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, _, err := counter.Peek(ctx, "contact-1", WindowHourly)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// daily window counts separately
	count, _, err = counter.Peek(ctx, "contact-1", WindowDaily)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRedisCounter_PeekNeverCreatesState(t *testing.T) {
	mr, counter := setupRedisCounter(t)

	count, start, err := counter.Peek(context.Background(), "contact-9", WindowHourly)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.False(t, start.IsZero())
	assert.Empty(t, mr.Keys())
}

func TestRedisCounter_WindowRollover(t *testing.T) {
	_, counter := setupRedisCounter(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 15, 59, 0, 0, time.UTC)
	counter.WithClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		_, err := counter.Increment(ctx, "contact-1", WindowHourly)
		require.NoError(t, err)
	}

	// two minutes later a fresh hourly window starts at zero
	now = now.Add(2 * time.Minute)
	count, start, err := counter.Peek(ctx, "contact-1", WindowHourly)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC), start)
}

// A contact can reach the cap at the end of one fixed window and again at
// the start of the next, briefly seeing ~2x the nominal rate. This is the
// documented fixed-window boundary behavior, asserted here on purpose.
func TestRedisCounter_FixedWindowBoundaryDoubling(t *testing.T) {
	_, counter := setupRedisCounter(t)
	ctx := context.Background()
	const hourlyCap = 3

	now := time.Date(2026, 3, 14, 15, 58, 0, 0, time.UTC)
	counter.WithClock(func() time.Time { return now })

	for i := 0; i < hourlyCap; i++ {
		_, err := counter.Increment(ctx, "contact-1", WindowHourly)
		require.NoError(t, err)
	}
	count, _, err := counter.Peek(ctx, "contact-1", WindowHourly)
	require.NoError(t, err)
	assert.Equal(t, int64(hourlyCap), count)

	now = now.Add(3 * time.Minute) // crosses 16:00

	for i := 0; i < hourlyCap; i++ {
		n, err := counter.Increment(ctx, "contact-1", WindowHourly)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), n)
	}
}

func TestMemoryCounter_Behavior(t *testing.T) {
	counter := NewMemoryCounter()
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 23, 50, 0, 0, time.UTC)
	counter.WithClock(func() time.Time { return now })

	n, err := counter.Increment(ctx, "contact-1", WindowDaily)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// next day the daily window resets
	now = now.Add(time.Hour)
	count, _, err := counter.Peek(ctx, "contact-1", WindowDaily)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
