package lock

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/leadflow/types"
)

// releaseScript deletes the lock only when it is still owned by the
// presented token, so an expired-and-reacquired lock is never released
// by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisManager is a redis-backed lease lock using SET NX PX with a
// compare-and-delete release. Suitable for multi-instance deployments
// where decisions for the same contact may land on different processes.
type RedisManager struct {
	client     *redis.Client
	keyPrefix  string
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewRedisManager creates a redis-backed lock manager.
func NewRedisManager(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keyPrefix == "" {
		keyPrefix = "leadflow:"
	}
	return &RedisManager{
		client:     client,
		keyPrefix:  keyPrefix + "lock:",
		retryDelay: 25 * time.Millisecond,
		logger:     logger.With(zap.String("component", "contact_lock")),
	}
}

func (m *RedisManager) key(contactID string) string {
	return m.keyPrefix + contactID
}

// Acquire implements Manager. It retries with jitter until ctx expires,
// then reports ErrBusy.
func (m *RedisManager) Acquire(ctx context.Context, contactID string, lease time.Duration) (string, error) {
	token := uuid.New().String()
	key := m.key(contactID)

	for {
		ok, err := m.client.SetNX(ctx, key, token, lease).Result()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return "", ErrBusy
			}
			return "", types.NewError(types.ErrStoreUnavailable, "lock acquire failed").WithCause(err)
		}
		if ok {
			return token, nil
		}

		delay := m.retryDelay + time.Duration(rand.Int63n(int64(m.retryDelay)))
		select {
		case <-ctx.Done():
			m.logger.Debug("lock contention", zap.String("contact_id", contactID))
			return "", ErrBusy
		case <-time.After(delay):
		}
	}
}

// Release implements Manager.
func (m *RedisManager) Release(ctx context.Context, contactID string, token string) error {
	n, err := releaseScript.Run(ctx, m.client, []string{m.key(contactID)}, token).Int()
	if err != nil {
		return types.NewError(types.ErrStoreUnavailable, "lock release failed").WithCause(err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
