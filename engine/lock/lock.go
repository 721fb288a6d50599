// Package lock provides the short-lived, lease-based contact lock that
// serializes handoff decisions per contact. At most one valid lock exists
// per contact at any instant; leases expire automatically so a crashed
// decision can never wedge a contact.
package lock

import (
	"context"
	"time"

	"github.com/BaSui01/leadflow/types"
)

// ErrBusy is returned when the lock is held by another decision and the
// bounded wait elapsed.
var ErrBusy = types.NewError(types.ErrContactBusy, "contact lock held").WithRetryable(true)

// ErrNotHeld is returned by Release when the caller's lease already
// expired or was never granted.
var ErrNotHeld = types.NewError(types.ErrNotFound, "lock not held by this token")

// Manager grants mutual exclusion per contact.
//
// Acquire blocks at most until ctx expires; on contention it returns
// ErrBusy rather than queueing indefinitely. The returned token must be
// presented to Release, which only removes the lock if the lease is still
// live and owned by that token.
type Manager interface {
	Acquire(ctx context.Context, contactID string, lease time.Duration) (token string, err error)
	Release(ctx context.Context, contactID string, token string) error
}
