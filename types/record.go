package types

import (
	"fmt"
	"time"
)

// Outcome is the delayed, out-of-band feedback on a handoff decision.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeReverted  Outcome = "reverted"
	OutcomeConverted Outcome = "converted"
	OutcomeUnknown   Outcome = "unknown"
)

// ParseOutcome validates an outcome string.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(s) {
	case OutcomeAccepted, OutcomeReverted, OutcomeConverted, OutcomeUnknown:
		return Outcome(s), nil
	default:
		return "", NewError(ErrInvalidInput, fmt.Sprintf("unknown outcome: %q", s))
	}
}

// OutcomeEvent reports the eventual outcome of a past decision, typically
// minutes to hours after the HandoffRecord was written.
type OutcomeEvent struct {
	RecordID string  `json:"record_id"`
	Outcome  Outcome `json:"outcome"`
}

// HandoffRecord is the audit entry for a single routing decision. Records
// are immutable once written except for Outcome, which is set exactly once
// by a later OutcomeEvent.
type HandoffRecord struct {
	ID            string       `json:"id"`
	ContactID     string       `json:"contact_id"`
	SourceHandler string       `json:"source_handler"`
	TargetHandler string       `json:"target_handler"`
	Confidence    float64      `json:"confidence"`
	Decision      DecisionKind `json:"decision"`
	Reason        ReasonCode   `json:"reason_code,omitempty"`
	Outcome       Outcome      `json:"outcome"`
	DecidedAt     time.Time    `json:"decided_at"`
}

// ConversationAssignment is the single live handler assignment for a
// contact. It is mutated only by a successful HANDOFF decision.
type ConversationAssignment struct {
	ContactID      string    `json:"contact_id"`
	CurrentHandler string    `json:"current_handler"`
	AssignedAt     time.Time `json:"assigned_at"`
}
