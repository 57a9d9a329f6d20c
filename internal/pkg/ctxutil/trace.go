// Package ctxutil carries request-scoped correlation data through
// context.Context so handlers and repos can tag their logs without gin
// types leaking below the HTTP layer.
package ctxutil

import "context"

type traceDataKey struct{}

// TraceData identifies one API request end to end. TraceID lines up with
// the active span when tracing is enabled; RequestID is always present.
type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}
