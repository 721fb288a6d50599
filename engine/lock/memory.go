package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryManager is an in-process lock manager for tests and
// single-instance deployments. Expired leases are treated as absent on
// the next acquisition attempt.
type MemoryManager struct {
	mu    sync.Mutex
	locks map[string]memoryEntry
	now   func() time.Time
}

// NewMemoryManager creates an in-memory lock manager.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		locks: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

// WithClock overrides the time source, for lease-expiry tests.
func (m *MemoryManager) WithClock(now func() time.Time) *MemoryManager {
	m.now = now
	return m
}

func (m *MemoryManager) tryAcquire(contactID string, lease time.Duration) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.locks[contactID]; ok && m.now().Before(e.expiresAt) {
		return "", false
	}
	token := uuid.New().String()
	m.locks[contactID] = memoryEntry{token: token, expiresAt: m.now().Add(lease)}
	return token, true
}

// Acquire implements Manager.
func (m *MemoryManager) Acquire(ctx context.Context, contactID string, lease time.Duration) (string, error) {
	for {
		if token, ok := m.tryAcquire(contactID, lease); ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ErrBusy
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// Release implements Manager.
func (m *MemoryManager) Release(_ context.Context, contactID string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.locks[contactID]
	if !ok || e.token != token || !m.now().Before(e.expiresAt) {
		return ErrNotHeld
	}
	delete(m.locks, contactID)
	return nil
}
