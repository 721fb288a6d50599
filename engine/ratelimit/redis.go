package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/leadflow/types"
)

// RedisCounter stores fixed-window counts in redis. Keys embed the
// window bucket and expire with the window, so stale windows clean
// themselves up.
type RedisCounter struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
	logger    *zap.Logger
}

// NewRedisCounter creates a redis-backed counter.
func NewRedisCounter(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisCounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keyPrefix == "" {
		keyPrefix = "leadflow:"
	}
	return &RedisCounter{
		client:    client,
		keyPrefix: keyPrefix + "rl:",
		now:       time.Now,
		logger:    logger.With(zap.String("component", "rate_limit")),
	}
}

// WithClock overrides the time source, for window-boundary tests.
func (c *RedisCounter) WithClock(now func() time.Time) *RedisCounter {
	c.now = now
	return c
}

func (c *RedisCounter) key(contactID string, kind WindowKind, start time.Time) string {
	return fmt.Sprintf("%s%s:%d:%s", c.keyPrefix, kind, start.Unix(), contactID)
}

// Increment implements Counter. INCR and EXPIRE run in one pipeline; the
// expiry is slightly past the window end so Peek at the boundary still
// sees the closing window rather than a phantom reset.
func (c *RedisCounter) Increment(ctx context.Context, contactID string, kind WindowKind) (int64, error) {
	start := kind.BucketStart(c.now())
	key := c.key(contactID, kind, start)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, kind.Length()+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, types.NewError(types.ErrStoreUnavailable, "rate counter increment failed").WithCause(err)
	}
	return incr.Val(), nil
}

// Peek implements Counter.
func (c *RedisCounter) Peek(ctx context.Context, contactID string, kind WindowKind) (int64, time.Time, error) {
	start := kind.BucketStart(c.now())
	n, err := c.client.Get(ctx, c.key(contactID, kind, start)).Int64()
	if err == redis.Nil {
		return 0, start, nil
	}
	if err != nil {
		return 0, start, types.NewError(types.ErrStoreUnavailable, "rate counter read failed").WithCause(err)
	}
	return n, start, nil
}
