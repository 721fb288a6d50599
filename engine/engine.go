package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/leadflow/config"
	"github.com/BaSui01/leadflow/engine/history"
	"github.com/BaSui01/leadflow/engine/learner"
	"github.com/BaSui01/leadflow/engine/lock"
	"github.com/BaSui01/leadflow/engine/ratelimit"
	"github.com/BaSui01/leadflow/internal/metrics"
	"github.com/BaSui01/leadflow/types"
)

// handlerLoadPrefix namespaces the per-handler volume counters that back
// the tie-break comparator, keeping them apart from per-contact caps.
const handlerLoadPrefix = "handler:"

// Options carries the engine's injected collaborators.
type Options struct {
	Locks    lock.Manager
	Counters ratelimit.Counter
	History  history.Store
	Bias     learner.BiasReader
	Emitter  Emitter
	Metrics  *metrics.Collector
	Logger   *zap.Logger
}

// Engine is the handoff policy engine.
type Engine struct {
	cfg      config.HandoffConfig
	locks    lock.Manager
	counters ratelimit.Counter
	store    history.Store
	bias     learner.BiasReader
	emitter  Emitter
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a policy engine.
func New(cfg config.HandoffConfig, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Engine{
		cfg:      cfg,
		locks:    opts.Locks,
		counters: opts.Counters,
		store:    opts.History,
		bias:     opts.Bias,
		emitter:  emitter,
		metrics:  opts.Metrics,
		logger:   logger.With(zap.String("component", "policy_engine")),
		now:      time.Now,
	}
}

// WithClock overrides the engine's time source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// EffectiveThreshold returns the confidence bar for a route: the base
// threshold minus learned bias, clamped so bias can never make the
// engine reckless or frozen.
func (e *Engine) EffectiveThreshold(ctx context.Context, source, target string) float64 {
	threshold := e.cfg.BaseConfidenceThreshold
	if e.bias != nil {
		threshold -= e.bias.Bias(ctx, source, target)
	}
	if threshold < e.cfg.ThresholdFloor {
		return e.cfg.ThresholdFloor
	}
	if threshold > e.cfg.ThresholdCeil {
		return e.cfg.ThresholdCeil
	}
	return threshold
}

// Decide evaluates one routing signal and returns the authoritative
// verdict. An error is returned only for invalid input; every
// infrastructure fault inside the decision path surfaces as
// DENY(internal_error) so the caller's safe default is to do nothing.
func (e *Engine) Decide(ctx context.Context, signal types.IntentSignal) (types.Decision, error) {
	start := e.now()

	if err := signal.Validate(); err != nil {
		return types.Decision{}, err
	}

	// A candidate equal to the current handler is a no-op, not an error.
	if signal.CandidateTarget == signal.SourceHandler {
		return e.finish(e.hold(signal, types.ReasonSelfHandoff, 0), start), nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, e.cfg.LockWaitTimeout)
	token, err := e.locks.Acquire(lockCtx, signal.ContactID, e.cfg.LockLeaseDuration)
	cancel()
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			e.metrics.RecordLockContention()
			return e.finish(e.deny(signal, types.ReasonContactBusy, 0), start), nil
		}
		e.logger.Error("lock acquire failed", zap.String("contact_id", signal.ContactID), zap.Error(err))
		return e.finish(e.deny(signal, types.ReasonInternalError, 0), start), nil
	}
	defer func() {
		// Release failure is tolerable; the lease expires on its own.
		releaseCtx, cancel := context.WithTimeout(context.Background(), e.cfg.StoreTimeout)
		defer cancel()
		if err := e.locks.Release(releaseCtx, signal.ContactID, token); err != nil && !errors.Is(err, lock.ErrNotHeld) {
			e.logger.Warn("lock release failed", zap.String("contact_id", signal.ContactID), zap.Error(err))
		}
	}()

	decision := e.decideLocked(ctx, signal)
	return e.finish(decision, start), nil
}

// decideLocked runs the policy checks that require the contact lock.
func (e *Engine) decideLocked(ctx context.Context, signal types.IntentSignal) types.Decision {
	reverse, err := e.findReverseEdge(ctx, signal)
	if err != nil {
		return e.internalDeny(ctx, signal, "reverse edge lookup failed", err)
	}
	if reverse != nil {
		// The contact was just handed away from this candidate; sending
		// it back would start a ping-pong loop.
		d := e.deny(signal, types.ReasonCircularHandoff, 0)
		e.appendAudit(ctx, signal, d)
		return d
	}

	hourly, daily, err := e.peekCounters(ctx, signal.ContactID)
	if err != nil {
		return e.internalDeny(ctx, signal, "rate counter read failed", err)
	}
	if hourly >= int64(e.cfg.RateLimitHourlyCap) || daily >= int64(e.cfg.RateLimitDailyCap) {
		d := e.deny(signal, types.ReasonRateLimited, 0)
		e.appendAudit(ctx, signal, d)
		return d
	}

	threshold := e.EffectiveThreshold(ctx, signal.SourceHandler, signal.CandidateTarget)
	// Confidence exactly at the threshold passes.
	if signal.Confidence < threshold {
		d := e.hold(signal, types.ReasonBelowThreshold, threshold)
		e.appendAudit(ctx, signal, d)
		return d
	}

	return e.commit(ctx, signal, threshold)
}

// commit performs step six: counters move first so a partial failure can
// only overcount (more conservative), then the record and assignment
// land in one transaction.
func (e *Engine) commit(ctx context.Context, signal types.IntentSignal, threshold float64) types.Decision {
	opCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()

	if _, err := e.counters.Increment(opCtx, signal.ContactID, ratelimit.WindowHourly); err != nil {
		return e.internalDeny(ctx, signal, "hourly counter increment failed", err)
	}
	if _, err := e.counters.Increment(opCtx, signal.ContactID, ratelimit.WindowDaily); err != nil {
		return e.internalDeny(ctx, signal, "daily counter increment failed", err)
	}
	// Per-handler volume feeds the tie-break comparator only.
	if _, err := e.counters.Increment(opCtx, handlerLoadPrefix+signal.CandidateTarget, ratelimit.WindowHourly); err != nil {
		e.logger.Warn("handler load increment failed", zap.String("handler", signal.CandidateTarget), zap.Error(err))
	}

	now := e.now().UTC()
	recordID, err := e.store.Commit(opCtx, types.HandoffRecord{
		ContactID:     signal.ContactID,
		SourceHandler: signal.SourceHandler,
		TargetHandler: signal.CandidateTarget,
		Confidence:    signal.Confidence,
		Decision:      types.DecisionHandoff,
		DecidedAt:     now,
	})
	if err != nil {
		return e.internalDeny(ctx, signal, "handoff commit failed", err)
	}

	e.emitter.EmitTag(ctx, types.TagIntent{
		ContactID: signal.ContactID,
		Key:       "temperature",
		Value:     string(signal.Temperature),
	})

	e.logger.Info("handoff committed",
		zap.String("contact_id", signal.ContactID),
		zap.String("source", signal.SourceHandler),
		zap.String("target", signal.CandidateTarget),
		zap.Float64("confidence", signal.Confidence),
		zap.Float64("threshold", threshold),
	)

	return types.Decision{
		ContactID:          signal.ContactID,
		Kind:               types.DecisionHandoff,
		Target:             signal.CandidateTarget,
		RecordID:           recordID,
		EffectiveThreshold: threshold,
		DecidedAt:          now,
	}
}

func (e *Engine) findReverseEdge(ctx context.Context, signal types.IntentSignal) (*types.HandoffRecord, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	return e.store.FindReverseEdge(opCtx, signal.ContactID, signal.CandidateTarget, signal.SourceHandler, e.cfg.CircularPreventionWindow)
}

func (e *Engine) peekCounters(ctx context.Context, contactID string) (hourly, daily int64, err error) {
	opCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()

	hourly, _, err = e.counters.Peek(opCtx, contactID, ratelimit.WindowHourly)
	if err != nil {
		return 0, 0, err
	}
	daily, _, err = e.counters.Peek(opCtx, contactID, ratelimit.WindowDaily)
	if err != nil {
		return 0, 0, err
	}
	return hourly, daily, nil
}

func (e *Engine) internalDeny(ctx context.Context, signal types.IntentSignal, msg string, err error) types.Decision {
	e.logger.Error(msg,
		zap.String("contact_id", signal.ContactID),
		zap.String("target", signal.CandidateTarget),
		zap.Error(err),
	)
	d := e.deny(signal, types.ReasonInternalError, 0)
	e.appendAudit(ctx, signal, d)
	return d
}

// appendAudit writes a denial or hold record. Audit is best-effort: a
// write failure never changes the verdict.
func (e *Engine) appendAudit(ctx context.Context, signal types.IntentSignal, d types.Decision) {
	opCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()

	_, err := e.store.Append(opCtx, types.HandoffRecord{
		ContactID:     signal.ContactID,
		SourceHandler: signal.SourceHandler,
		TargetHandler: signal.CandidateTarget,
		Confidence:    signal.Confidence,
		Decision:      d.Kind,
		Reason:        d.Reason,
		DecidedAt:     d.DecidedAt,
	})
	if err != nil {
		e.logger.Warn("audit append failed",
			zap.String("contact_id", signal.ContactID),
			zap.String("reason", string(d.Reason)),
			zap.Error(err),
		)
	}
}

func (e *Engine) finish(d types.Decision, start time.Time) types.Decision {
	e.metrics.RecordDecision(string(d.Kind), string(d.Reason), e.now().Sub(start))
	return d
}

func (e *Engine) deny(signal types.IntentSignal, reason types.ReasonCode, threshold float64) types.Decision {
	return e.verdict(signal, types.DecisionDeny, reason, threshold)
}

func (e *Engine) hold(signal types.IntentSignal, reason types.ReasonCode, threshold float64) types.Decision {
	return e.verdict(signal, types.DecisionHold, reason, threshold)
}

func (e *Engine) verdict(signal types.IntentSignal, kind types.DecisionKind, reason types.ReasonCode, threshold float64) types.Decision {
	return types.Decision{
		ContactID:          signal.ContactID,
		Kind:               kind,
		Reason:             reason,
		EffectiveThreshold: threshold,
		DecidedAt:          e.now().UTC(),
	}
}
