// Package grpcmw provides a gRPC unary server interceptor that threads
// request identifiers through the context and logs completed calls through
// a tidelog.Logger. The real implementation requires the `grpc` build tag;
// without it a stub interceptor returns ErrGRPCNotEnabled.
package grpcmw

// Option defines a configuration option for the gRPC middleware.
type Option func(*options)

type options struct {
	traceKey   string
	requestKey string
}

// WithTraceKey customizes the metadata key used to populate the trace
// identifier.
func WithTraceKey(name string) Option {
	return func(o *options) {
		if o == nil || name == "" {
			return
		}

		o.traceKey = name
	}
}

// WithRequestKey customizes the metadata key used to populate the request
// identifier.
func WithRequestKey(name string) Option {
	return func(o *options) {
		if o == nil || name == "" {
			return
		}

		o.requestKey = name
	}
}
