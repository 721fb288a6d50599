package engine

import (
	"context"

	"github.com/BaSui01/leadflow/types"
)

// Emitter forwards side-channel intents produced by committed decisions
// to external collaborators. Implementations must never block the
// decision path.
type Emitter interface {
	EmitTag(ctx context.Context, tag types.TagIntent)
}

// ChannelEmitter buffers tag intents on a channel for an out-of-band
// consumer (the CRM sync collaborator). Full buffer drops the intent;
// tagging is best-effort by design of the decision path.
type ChannelEmitter struct {
	tags chan types.TagIntent
}

// NewChannelEmitter creates an emitter with the given buffer size.
func NewChannelEmitter(size int) *ChannelEmitter {
	if size <= 0 {
		size = 256
	}
	return &ChannelEmitter{tags: make(chan types.TagIntent, size)}
}

// EmitTag implements Emitter.
func (e *ChannelEmitter) EmitTag(_ context.Context, tag types.TagIntent) {
	select {
	case e.tags <- tag:
	default:
	}
}

// Tags exposes the consumer side of the tag stream.
func (e *ChannelEmitter) Tags() <-chan types.TagIntent {
	return e.tags
}

// NopEmitter discards all intents.
type NopEmitter struct{}

// EmitTag implements Emitter.
func (NopEmitter) EmitTag(context.Context, types.TagIntent) {}
