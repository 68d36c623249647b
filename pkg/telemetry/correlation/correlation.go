// Package correlation carries a correlation id and the active trace across
// the outbox, from the request that wrote an event to the relay that
// delivers it.
package correlation

import (
	"context"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
)

const (
	KeyCorrelationID = "correlation_id"
	KeyTraceID       = "trace_id"
	KeySpanID        = "span_id"
)

type ctxKey struct{}

func WithID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

func ID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Ensure returns ctx with a correlation id, minting a ULID when absent.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := ID(ctx); id != "" {
		return ctx, id
	}
	id := ulid.Make().String()
	return WithID(ctx, id), id
}

// Stamp returns the headers to persist with an outbound event.
func Stamp(ctx context.Context) map[string]string {
	_, id := Ensure(ctx)
	headers := map[string]string{KeyCorrelationID: id}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		headers[KeyTraceID] = sc.TraceID().String()
		headers[KeySpanID] = sc.SpanID().String()
	}
	return headers
}

// Resume rebuilds the correlation id and remote parent span recorded by
// Stamp. Malformed trace ids are ignored.
func Resume(ctx context.Context, headers map[string]string) context.Context {
	ctx = WithID(ctx, headers[KeyCorrelationID])

	traceID, err := trace.TraceIDFromHex(headers[KeyTraceID])
	if err != nil {
		return ctx
	}
	spanID, err := trace.SpanIDFromHex(headers[KeySpanID])
	if err != nil {
		return ctx
	}
	return trace.ContextWithRemoteSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
}
