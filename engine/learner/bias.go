// Package learner adjusts per-route confidence bias from handoff
// outcomes, fully off the decision path. The policy engine only reads
// bias through BiasReader; a stalled learner can never slow a decision.
package learner

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/leadflow/types"
)

// BiasReader is the engine-facing view of learned bias. Bias is
// subtracted from the base confidence threshold for a source->target
// route; implementations must return quickly and fall back to zero on
// any failure.
type BiasReader interface {
	Bias(ctx context.Context, source, target string) float64
}

// BiasStore extends BiasReader with the learner-side write path.
type BiasStore interface {
	BiasReader
	SetBias(ctx context.Context, source, target string, bias float64) error
}

func routeKey(source, target string) string {
	return source + "->" + target
}

// MemoryBiasStore is an in-process bias store.
type MemoryBiasStore struct {
	mu     sync.RWMutex
	biases map[string]float64
}

// NewMemoryBiasStore creates an in-memory bias store.
func NewMemoryBiasStore() *MemoryBiasStore {
	return &MemoryBiasStore{biases: make(map[string]float64)}
}

// Bias implements BiasReader.
func (s *MemoryBiasStore) Bias(_ context.Context, source, target string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.biases[routeKey(source, target)]
}

// SetBias implements BiasStore.
func (s *MemoryBiasStore) SetBias(_ context.Context, source, target string, bias float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.biases[routeKey(source, target)] = bias
	return nil
}

// RedisBiasStore keeps biases in a redis hash so all service instances
// share the learner's view.
type RedisBiasStore struct {
	client *redis.Client
	key    string
}

// NewRedisBiasStore creates a redis-backed bias store.
func NewRedisBiasStore(client *redis.Client, keyPrefix string) *RedisBiasStore {
	if keyPrefix == "" {
		keyPrefix = "leadflow:"
	}
	return &RedisBiasStore{client: client, key: keyPrefix + "bias"}
}

// Bias implements BiasReader. Any failure reads as zero bias, which
// leaves the base threshold in effect.
func (s *RedisBiasStore) Bias(ctx context.Context, source, target string) float64 {
	val, err := s.client.HGet(ctx, s.key, routeKey(source, target)).Float64()
	if err != nil {
		return 0
	}
	return val
}

// SetBias implements BiasStore.
func (s *RedisBiasStore) SetBias(ctx context.Context, source, target string, bias float64) error {
	if err := s.client.HSet(ctx, s.key, routeKey(source, target), fmt.Sprintf("%g", bias)).Err(); err != nil {
		return types.NewError(types.ErrStoreUnavailable, "bias write failed").WithCause(err)
	}
	return nil
}
