package constants

import "context"

// Context key types to avoid collisions when using context.WithValue.
type (
	traceIDKeyType   struct{}
	requestIDKeyType struct{}
)

// Context keys for values stored in a context.Context and extracted by the
// logger.
var (
	// TraceIDKey is the context key for the trace ID.
	//
	//nolint:gochecknoglobals
	TraceIDKey = traceIDKeyType{}
	// RequestIDKey is the context key for the request ID.
	//
	//nolint:gochecknoglobals
	RequestIDKey = requestIDKeyType{}
)

// WithTraceID returns a context carrying the trace identifier.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

// TraceIDFrom returns the trace identifier carried by ctx, if any.
func TraceIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(TraceIDKey).(string)

	return id, ok && id != ""
}

// WithRequestID returns a context carrying the request identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestIDFrom returns the request identifier carried by ctx, if any.
func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RequestIDKey).(string)

	return id, ok && id != ""
}
