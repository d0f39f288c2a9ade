//go:build grpc

package grpcmw

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/tidelog/tidelog"
	"github.com/tidelog/tidelog/internal/constants"
)

func actualOptions(opts ...Option) options {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.traceKey == "" {
		cfg.traceKey = "x-trace-id"
	}

	if cfg.requestKey == "" {
		cfg.requestKey = "x-request-id"
	}

	return cfg
}

// UnaryServerInterceptor enriches the call context with metadata
// identifiers and logs each completed call's method, duration, and status
// code through log. A nil log enriches without logging.
func UnaryServerInterceptor(log *tidelog.Logger, opts ...Option) grpc.UnaryServerInterceptor {
	cfg := actualOptions(opts...)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(cfg.traceKey); len(values) > 0 {
				ctx = constants.WithTraceID(ctx, values[0])
			}

			if values := md.Get(cfg.requestKey); len(values) > 0 {
				ctx = constants.WithRequestID(ctx, values[0])
			}
		}

		start := time.Now()

		resp, err := handler(ctx, req)

		if log != nil {
			logCall(log, ctx, info, time.Since(start), err)
		}

		return resp, err
	}
}

func logCall(log *tidelog.Logger, ctx context.Context, info *grpc.UnaryServerInfo, latency time.Duration, err error) {
	method := "unknown"
	if info != nil {
		method = info.FullMethod
	}

	fields := make([]tidelog.Field, 0, 5)
	fields = append(fields,
		tidelog.Str("method", method),
		tidelog.Duration("duration", latency),
		tidelog.Str("code", status.Code(err).String()),
	)

	if id, ok := constants.TraceIDFrom(ctx); ok {
		fields = append(fields, tidelog.Str("trace_id", id))
	}

	if id, ok := constants.RequestIDFrom(ctx); ok {
		fields = append(fields, tidelog.Str("request_id", id))
	}

	if err != nil {
		log.Error("rpc failed", fields...)

		return
	}

	log.Info("rpc completed", fields...)
}
