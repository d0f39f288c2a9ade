//go:build grpc

package grpcmw

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/tidelog/tidelog"
	"github.com/tidelog/tidelog/internal/constants"
	"github.com/tidelog/tidelog/pkg/format"
	"github.com/tidelog/tidelog/pkg/sinks"
)

func TestUnaryServerInterceptorMetadataExtraction(t *testing.T) {
	traceID := "trace-123"
	requestID := "request-456"

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(
		"x-trace-id", traceID,
		"x-request-id", requestID,
	))

	interceptor := UnaryServerInterceptor(nil)

	var capturedTrace, capturedRequest string

	handler := func(ctx context.Context, req any) (any, error) {
		capturedTrace, _ = constants.TraceIDFrom(ctx)
		capturedRequest, _ = constants.RequestIDFrom(ctx)

		return nil, nil
	}

	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{}, handler)
	require.NoError(t, err)
	require.Equal(t, traceID, capturedTrace)
	require.Equal(t, requestID, capturedRequest)
}

func TestUnaryServerInterceptorCustomKeys(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(
		"x-trace", "custom-trace",
		"x-request", "custom-request",
	))

	interceptor := UnaryServerInterceptor(nil,
		WithTraceKey("x-trace"),
		WithRequestKey("x-request"),
	)

	handler := func(ctx context.Context, req any) (any, error) {
		traceID, _ := constants.TraceIDFrom(ctx)
		requestID, _ := constants.RequestIDFrom(ctx)

		require.Equal(t, "custom-trace", traceID)
		require.Equal(t, "custom-request", requestID)

		return nil, nil
	}

	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{}, handler)
	require.NoError(t, err)
}

func newInterceptorHarness(t *testing.T) (*tidelog.Runtime, *tidelog.Logger, *sinks.MemorySink) {
	t.Helper()

	rt := tidelog.NewRuntime(tidelog.RuntimeOptions{DiagnosticsPerSecond: 1000})
	t.Cleanup(func() { _ = rt.Shutdown() })

	tf := format.NewTextFormatter()
	tf.DisableTimestamp = true
	sink := sinks.NewMemorySink(sinks.MemoryOptions{Formatter: tf})

	cfg := tidelog.DefaultConfig()
	cfg.Name = "grpc"
	cfg.Sinks = []tidelog.Sink{sink}

	log, err := rt.CreateLogger(cfg)
	require.NoError(t, err)

	return rt, log, sink
}

func TestUnaryServerInterceptorLogsCompletedCall(t *testing.T) {
	rt, log, sink := newInterceptorHarness(t)

	interceptor := UnaryServerInterceptor(log)
	info := &grpc.UnaryServerInfo{FullMethod: "/orders.v1.Orders/Create"}

	handler := func(ctx context.Context, req any) (any, error) { return "ok", nil }

	resp, err := interceptor(context.Background(), nil, info, handler)
	require.NoError(t, err)
	require.Equal(t, "ok", resp)

	require.NoError(t, rt.FlushAll())

	lines := sink.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[ INFO] rpc completed")
	assert.Contains(t, lines[0], "method=/orders.v1.Orders/Create")
	assert.Contains(t, lines[0], "code=OK")
}

func TestUnaryServerInterceptorLogsFailedCall(t *testing.T) {
	rt, log, sink := newInterceptorHarness(t)

	interceptor := UnaryServerInterceptor(log)
	info := &grpc.UnaryServerInfo{FullMethod: "/orders.v1.Orders/Cancel"}

	handler := func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "no such order")
	}

	_, err := interceptor(context.Background(), nil, info, handler)
	require.Error(t, err)

	require.NoError(t, rt.FlushAll())

	lines := sink.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[ERROR] rpc failed")
	assert.Contains(t, lines[0], "code=NotFound")
}

func TestUnaryServerInterceptorPlainError(t *testing.T) {
	rt, log, sink := newInterceptorHarness(t)

	interceptor := UnaryServerInterceptor(log)

	handler := func(ctx context.Context, req any) (any, error) {
		return nil, errors.New("unwrapped failure")
	}

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/Y"}, handler)
	require.Error(t, err)

	require.NoError(t, rt.FlushAll())

	lines := sink.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "code=Unknown")
}
