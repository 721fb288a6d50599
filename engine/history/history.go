// Package history provides the durable, append-only audit store for
// handoff decisions, plus the single live conversation assignment per
// contact. Records are immutable once written except for the one-shot
// outcome mutation.
package history

import (
	"context"
	"time"

	"github.com/BaSui01/leadflow/types"
)

// ErrNotFound is returned when a record or assignment does not exist.
var ErrNotFound = types.NewError(types.ErrNotFound, "record not found")

// ErrOutcomeClosed is returned when an outcome arrives after the
// follow-up window, or when the outcome was already set.
var ErrOutcomeClosed = types.NewError(types.ErrInvalidInput, "outcome window closed")

// Store persists handoff records and conversation assignments.
type Store interface {
	// Append writes a decision record and returns its id. An empty
	// record ID is assigned a fresh one.
	Append(ctx context.Context, record types.HandoffRecord) (string, error)

	// Commit atomically appends a HANDOFF record and moves the contact's
	// assignment to the record's target handler. Either both happen or
	// neither does.
	Commit(ctx context.Context, record types.HandoffRecord) (string, error)

	// FindReverseEdge returns the most recent committed HANDOFF from
	// `from` to `to` for the contact within the lookback window, or nil.
	// Denied and held attempts never match.
	FindReverseEdge(ctx context.Context, contactID, from, to string, within time.Duration) (*types.HandoffRecord, error)

	// RecordOutcome sets the outcome of a record exactly once.
	RecordOutcome(ctx context.Context, recordID string, outcome types.Outcome) error

	// Get returns a record by id.
	Get(ctx context.Context, recordID string) (*types.HandoffRecord, error)

	// Assignment returns the live assignment for a contact.
	Assignment(ctx context.Context, contactID string) (*types.ConversationAssignment, error)

	// SetAssignment moves the contact to a new handler. Called only on a
	// committed HANDOFF decision.
	SetAssignment(ctx context.Context, contactID, handler string, at time.Time) error

	// PurgeOlderThan removes records decided before cutoff and returns
	// how many were deleted.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
