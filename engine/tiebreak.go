package engine

import (
	"context"
	"sort"

	"github.com/BaSui01/leadflow/engine/ratelimit"
	"github.com/BaSui01/leadflow/types"
)

// candidate pairs a signal with the tie-break inputs resolved for it.
type candidate struct {
	signal      types.IntentSignal
	threshold   float64
	utilization int64
}

// candidateLess is the total order used everywhere a winner is picked:
// confidence descending, handler volume ascending, handler id ascending.
func candidateLess(a, b candidate) bool {
	if a.signal.Confidence != b.signal.Confidence {
		return a.signal.Confidence > b.signal.Confidence
	}
	if a.utilization != b.utilization {
		return a.utilization < b.utilization
	}
	return a.signal.CandidateTarget < b.signal.CandidateTarget
}

// DecideBest resolves an ambiguous message that scored multiple
// candidate targets. Candidates below their effective threshold are
// dropped; the rest are ordered by a total-order comparator so the
// choice is reproducible: confidence descending, then current handler
// volume ascending, then handler id ascending. The single winner goes
// through the full Decide pipeline.
//
// With no passing candidate the best-scoring one is evaluated anyway,
// which yields the correct HOLD verdict and audit record.
func (e *Engine) DecideBest(ctx context.Context, signals []types.IntentSignal) (types.Decision, error) {
	if len(signals) == 0 {
		return types.Decision{}, types.NewError(types.ErrInvalidInput, "no candidate signals")
	}
	if len(signals) == 1 {
		return e.Decide(ctx, signals[0])
	}

	for _, s := range signals {
		if err := s.Validate(); err != nil {
			return types.Decision{}, err
		}
		if s.ContactID != signals[0].ContactID {
			return types.Decision{}, types.NewError(types.ErrInvalidInput, "candidates span multiple contacts")
		}
	}

	candidates := make([]candidate, 0, len(signals))
	for _, s := range signals {
		threshold := e.EffectiveThreshold(ctx, s.SourceHandler, s.CandidateTarget)
		util, _, err := e.counters.Peek(ctx, handlerLoadPrefix+s.CandidateTarget, ratelimit.WindowHourly)
		if err != nil {
			// Comparator input only; treat an unreadable counter as busy
			// so healthy handlers win ties.
			util = int64(^uint64(0) >> 1)
		}
		candidates = append(candidates, candidate{signal: s, threshold: threshold, utilization: util})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidateLess(candidates[i], candidates[j])
	})

	for _, c := range candidates {
		if c.signal.Confidence >= c.threshold {
			return e.Decide(ctx, c.signal)
		}
	}

	// No candidate passes: the comparator still picks the one to audit,
	// so the HOLD record does not depend on input order.
	return e.Decide(ctx, candidates[0].signal)
}
