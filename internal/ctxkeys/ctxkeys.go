// Package ctxkeys holds the context keys shared between the HTTP layer
// and the decision pipeline, so packages never collide on raw strings.
package ctxkeys

import "context"

type contextKey string

const traceIDKey contextKey = "trace_id"

// WithTraceID attaches a request trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the request trace ID, if one was attached.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
