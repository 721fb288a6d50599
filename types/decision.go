package types

import "time"

// DecisionKind is the authoritative routing verdict for one message.
type DecisionKind string

const (
	DecisionHandoff DecisionKind = "HANDOFF"
	DecisionHold    DecisionKind = "HOLD"
	DecisionDeny    DecisionKind = "DENY"
)

// ReasonCode explains a HOLD or DENY verdict. HANDOFF decisions carry no reason.
type ReasonCode string

const (
	ReasonSelfHandoff     ReasonCode = "self_handoff"
	ReasonContactBusy     ReasonCode = "contact_busy"
	ReasonCircularHandoff ReasonCode = "circular_handoff"
	ReasonRateLimited     ReasonCode = "rate_limited"
	ReasonBelowThreshold  ReasonCode = "below_threshold"
	ReasonInternalError   ReasonCode = "internal_error"
)

// Decision is the synchronous result returned to the message dispatcher.
// Target is set only for HANDOFF; Reason only for HOLD and DENY. RecordID
// references the audit record written for this decision, when one exists,
// and is the correlation key for later OutcomeEvents.
type Decision struct {
	ContactID          string       `json:"contact_id"`
	Kind               DecisionKind `json:"decision"`
	Target             string       `json:"target,omitempty"`
	Reason             ReasonCode   `json:"reason_code,omitempty"`
	RecordID           string       `json:"record_id,omitempty"`
	EffectiveThreshold float64      `json:"effective_threshold,omitempty"`
	DecidedAt          time.Time    `json:"decided_at"`
}

// IsHandoff reports whether the decision moves the conversation.
func (d Decision) IsHandoff() bool { return d.Kind == DecisionHandoff }

// TagIntent is a request to label a contact in the CRM, emitted by the
// engine and carried out by an external sync collaborator. The engine
// emits the intent only; it never talks to the CRM itself.
type TagIntent struct {
	ContactID string `json:"contact_id"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}
