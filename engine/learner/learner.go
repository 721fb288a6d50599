package learner

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/BaSui01/leadflow/engine/history"
	"github.com/BaSui01/leadflow/types"
)

// Options configures the learner's EMA update.
type Options struct {
	// Alpha is the EMA smoothing factor in (0,1].
	Alpha float64

	// Step is the magnitude the EMA pulls toward on each outcome.
	Step float64

	// Min and Max clamp the stored bias.
	Min float64
	Max float64

	// QueueSize is the event buffer; events beyond it are dropped.
	QueueSize int
}

// DefaultOptions returns the default learner tuning.
func DefaultOptions() Options {
	return Options{Alpha: 0.2, Step: 0.1, Min: -0.2, Max: 0.2, QueueSize: 1024}
}

// Learner consumes outcome events and maintains per-route bias as a
// bounded exponential moving average of outcome quality. Positive
// outcomes (accepted, converted) lower the effective threshold for the
// route; reverted raises it; unknown changes nothing.
type Learner struct {
	store   BiasStore
	records history.Store
	opts    Options
	events  chan types.OutcomeEvent
	dropped func() // metrics hook, may be nil
	logger  *zap.Logger
}

// New creates a learner.
func New(store BiasStore, records history.Store, opts Options, logger *zap.Logger) *Learner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultOptions().QueueSize
	}
	return &Learner{
		store:   store,
		records: records,
		opts:    opts,
		events:  make(chan types.OutcomeEvent, opts.QueueSize),
		logger:  logger.With(zap.String("component", "pattern_learner")),
	}
}

// OnDrop registers a callback invoked when an event is dropped because
// the queue is full.
func (l *Learner) OnDrop(fn func()) { l.dropped = fn }

// Offer enqueues an outcome event without ever blocking the caller.
// It reports whether the event was accepted.
func (l *Learner) Offer(event types.OutcomeEvent) bool {
	select {
	case l.events <- event:
		return true
	default:
		l.logger.Warn("outcome queue full, dropping event", zap.String("record_id", event.RecordID))
		if l.dropped != nil {
			l.dropped()
		}
		return false
	}
}

// Run consumes events until ctx is canceled. Intended to be managed by
// an errgroup alongside the HTTP server.
func (l *Learner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-l.events:
			l.process(ctx, event)
		}
	}
}

func (l *Learner) process(ctx context.Context, event types.OutcomeEvent) {
	if err := l.records.RecordOutcome(ctx, event.RecordID, event.Outcome); err != nil {
		if errors.Is(err, history.ErrNotFound) || errors.Is(err, history.ErrOutcomeClosed) {
			l.logger.Debug("outcome not recorded",
				zap.String("record_id", event.RecordID),
				zap.Error(err),
			)
			return
		}
		l.logger.Error("outcome record failed", zap.String("record_id", event.RecordID), zap.Error(err))
		return
	}

	record, err := l.records.Get(ctx, event.RecordID)
	if err != nil {
		l.logger.Error("record lookup failed", zap.String("record_id", event.RecordID), zap.Error(err))
		return
	}

	target, ok := nudgeTarget(event.Outcome, l.opts)
	if !ok {
		return
	}

	current := l.store.Bias(ctx, record.SourceHandler, record.TargetHandler)
	next := clamp((1-l.opts.Alpha)*current+l.opts.Alpha*target, l.opts.Min, l.opts.Max)

	if err := l.store.SetBias(ctx, record.SourceHandler, record.TargetHandler, next); err != nil {
		l.logger.Error("bias update failed",
			zap.String("source", record.SourceHandler),
			zap.String("target", record.TargetHandler),
			zap.Error(err),
		)
		return
	}

	l.logger.Debug("bias updated",
		zap.String("source", record.SourceHandler),
		zap.String("target", record.TargetHandler),
		zap.String("outcome", string(event.Outcome)),
		zap.Float64("bias", next),
	)
}

func nudgeTarget(outcome types.Outcome, opts Options) (float64, bool) {
	switch outcome {
	case types.OutcomeAccepted, types.OutcomeConverted:
		return opts.Step, true
	case types.OutcomeReverted:
		return -opts.Step, true
	default:
		return 0, false
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
