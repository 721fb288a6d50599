// Package engine implements the handoff policy engine: the single
// authority that decides, per inbound message, whether a conversation
// moves to a different handler.
//
// The engine is pure policy over injected collaborators: a lease-based
// contact lock serializes decisions per contact, fixed-window counters
// cap handoff churn, the history store backs circular-prevention
// lookups and audit, and the learner supplies per-route confidence
// bias. Every infrastructure failure inside the decision path converts
// to a DENY; "do nothing" is always the safe outcome.
package engine
