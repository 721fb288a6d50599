package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/leadflow/types"
)

// MemoryStore is an in-process Store for tests. It implements the same
// atomicity contract as GormStore: Commit either writes both the record
// and the assignment or neither.
type MemoryStore struct {
	mu            sync.RWMutex
	records       map[string]types.HandoffRecord
	order         []string
	assignments   map[string]types.ConversationAssignment
	outcomeWindow time.Duration
	now           func() time.Time

	// FailAppends forces Append/Commit to fail, for fault-path tests.
	FailAppends bool
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:     make(map[string]types.HandoffRecord),
		assignments: make(map[string]types.ConversationAssignment),
		now:         time.Now,
	}
}

// WithOutcomeWindow bounds outcome recording.
func (s *MemoryStore) WithOutcomeWindow(d time.Duration) *MemoryStore {
	s.outcomeWindow = d
	return s
}

// WithClock overrides the time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) append(record *types.HandoffRecord) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Outcome == "" {
		record.Outcome = types.OutcomeUnknown
	}
	if record.DecidedAt.IsZero() {
		record.DecidedAt = s.now().UTC()
	}
	s.records[record.ID] = *record
	s.order = append(s.order, record.ID)
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, record types.HandoffRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailAppends {
		return "", types.NewError(types.ErrStoreUnavailable, "history append failed")
	}
	s.append(&record)
	return record.ID, nil
}

// Commit implements Store.
func (s *MemoryStore) Commit(_ context.Context, record types.HandoffRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailAppends {
		return "", types.NewError(types.ErrStoreUnavailable, "history commit failed")
	}
	s.append(&record)
	s.assignments[record.ContactID] = types.ConversationAssignment{
		ContactID:      record.ContactID,
		CurrentHandler: record.TargetHandler,
		AssignedAt:     record.DecidedAt,
	}
	return record.ID, nil
}

// FindReverseEdge implements Store.
func (s *MemoryStore) FindReverseEdge(_ context.Context, contactID, from, to string, within time.Duration) (*types.HandoffRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().UTC().Add(-within)
	for i := len(s.order) - 1; i >= 0; i-- {
		r := s.records[s.order[i]]
		if r.ContactID == contactID &&
			r.SourceHandler == from &&
			r.TargetHandler == to &&
			r.Decision == types.DecisionHandoff &&
			!r.DecidedAt.Before(cutoff) {
			return &r, nil
		}
	}
	return nil, nil
}

// RecordOutcome implements Store.
func (s *MemoryStore) RecordOutcome(_ context.Context, recordID string, outcome types.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[recordID]
	if !ok {
		return ErrNotFound
	}
	if r.Outcome != types.OutcomeUnknown {
		return ErrOutcomeClosed
	}
	if s.outcomeWindow > 0 && s.now().Sub(r.DecidedAt) > s.outcomeWindow {
		return ErrOutcomeClosed
	}
	r.Outcome = outcome
	s.records[recordID] = r
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, recordID string) (*types.HandoffRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

// Assignment implements Store.
func (s *MemoryStore) Assignment(_ context.Context, contactID string) (*types.ConversationAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assignments[contactID]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

// SetAssignment implements Store.
func (s *MemoryStore) SetAssignment(_ context.Context, contactID, handler string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignments[contactID] = types.ConversationAssignment{
		ContactID:      contactID,
		CurrentHandler: handler,
		AssignedAt:     at,
	}
	return nil
}

// PurgeOlderThan implements Store.
func (s *MemoryStore) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	keep := s.order[:0]
	for _, id := range s.order {
		if s.records[id].DecidedAt.Before(cutoff) {
			delete(s.records, id)
			purged++
			continue
		}
		keep = append(keep, id)
	}
	s.order = keep
	return purged, nil
}
