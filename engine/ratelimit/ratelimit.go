// Package ratelimit provides fixed-window handoff counters per contact.
//
// Windows are bucketed by truncating the current time to the window
// length, so a window is active for [start, start+length). Fixed windows
// are a deliberate simplification over sliding windows: a contact can in
// theory approach twice the nominal cap across a window boundary. That
// boundary behavior is accepted and covered by tests.
package ratelimit

import (
	"context"
	"time"
)

// WindowKind selects the hourly or daily counter.
type WindowKind string

const (
	WindowHourly WindowKind = "hourly"
	WindowDaily  WindowKind = "daily"
)

// Length returns the window duration for the kind.
func (k WindowKind) Length() time.Duration {
	if k == WindowDaily {
		return 24 * time.Hour
	}
	return time.Hour
}

// BucketStart returns the fixed-window start containing now.
func (k WindowKind) BucketStart(now time.Time) time.Time {
	return now.UTC().Truncate(k.Length())
}

// Counter tracks successful handoffs per contact per window.
//
// Increment is atomic per key; Peek never creates state. The policy
// engine holds the contact lock around check-then-increment, so the
// counters themselves only need per-key atomicity, which both
// implementations provide.
type Counter interface {
	Increment(ctx context.Context, contactID string, kind WindowKind) (int64, error)
	Peek(ctx context.Context, contactID string, kind WindowKind) (count int64, windowStart time.Time, err error)
}
