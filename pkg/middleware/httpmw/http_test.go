package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidelog/tidelog"
	"github.com/tidelog/tidelog/internal/constants"
	"github.com/tidelog/tidelog/pkg/format"
	"github.com/tidelog/tidelog/pkg/sinks"
)

func TestContextMiddleware(t *testing.T) {
	middleware := ContextMiddleware(WithIDGenerator(func() string { return "generated" }))

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID, _ := constants.TraceIDFrom(r.Context())
		requestID, _ := constants.RequestIDFrom(r.Context())

		require.Equal(t, "generated", traceID)
		require.Equal(t, "generated", requestID)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler.ServeHTTP(rr, req)
}

func TestContextMiddlewareHeaders(t *testing.T) {
	middleware := ContextMiddleware(WithGenerateMissingIDs(false))

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID, _ := constants.TraceIDFrom(r.Context())
		requestID, _ := constants.RequestIDFrom(r.Context())

		require.Equal(t, "trace", traceID)
		require.Equal(t, "req", requestID)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", "trace")
	req.Header.Set("X-Request-ID", "req")

	handler.ServeHTTP(rr, req)
}

func TestContextMiddlewareNoGeneration(t *testing.T) {
	middleware := ContextMiddleware(WithGenerateMissingIDs(false))

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasTrace := constants.TraceIDFrom(r.Context())
		_, hasRequest := constants.RequestIDFrom(r.Context())

		require.False(t, hasTrace)
		require.False(t, hasRequest)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestContextMiddlewareCustomHeaders(t *testing.T) {
	middleware := ContextMiddleware(
		WithTraceHeader("Traceparent"),
		WithRequestHeader("X-Correlation-ID"),
		WithGenerateMissingIDs(false),
	)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID, _ := constants.TraceIDFrom(r.Context())
		requestID, _ := constants.RequestIDFrom(r.Context())

		require.Equal(t, "tp-1", traceID)
		require.Equal(t, "corr-2", requestID)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Traceparent", "tp-1")
	req.Header.Set("X-Correlation-ID", "corr-2")

	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func newLoggingHarness(t *testing.T) (*tidelog.Runtime, *tidelog.Logger, *sinks.MemorySink) {
	t.Helper()

	rt := tidelog.NewRuntime(tidelog.RuntimeOptions{DiagnosticsPerSecond: 1000})
	t.Cleanup(func() { _ = rt.Shutdown() })

	tf := format.NewTextFormatter()
	tf.DisableTimestamp = true
	sink := sinks.NewMemorySink(sinks.MemoryOptions{Formatter: tf})

	cfg := tidelog.DefaultConfig()
	cfg.Name = "http"
	cfg.Sinks = []tidelog.Sink{sink}

	log, err := rt.CreateLogger(cfg)
	require.NoError(t, err)

	return rt, log, sink
}

func TestLoggingMiddleware(t *testing.T) {
	rt, log, sink := newLoggingHarness(t)

	handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-9")

	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NoError(t, rt.FlushAll())

	lines := sink.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[ INFO] request completed")
	assert.Contains(t, lines[0], "method=GET")
	assert.Contains(t, lines[0], "path=/healthz")
	assert.Contains(t, lines[0], "status=204")
	assert.Contains(t, lines[0], "request_id=req-9")
}

func TestLoggingMiddlewareServerError(t *testing.T) {
	rt, log, sink := newLoggingHarness(t)

	handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/orders", nil))

	require.NoError(t, rt.FlushAll())

	lines := sink.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[ERROR] request returned server error")
	assert.Contains(t, lines[0], "status=500")
}

func TestLoggingMiddlewareContextIDs(t *testing.T) {
	rt, log, sink := newLoggingHarness(t)

	wrapped := ContextMiddleware(WithIDGenerator(func() string { return "ctx-id" }))(
		Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})),
	)

	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NoError(t, rt.FlushAll())

	lines := sink.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "trace_id=ctx-id")
	assert.Contains(t, lines[0], "request_id=ctx-id")
}

func TestRemoteAddr(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "forwarded for wins",
			headers: map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2", "X-Real-IP": "10.9.9.9"},
			want:    "10.0.0.1",
		},
		{
			name:    "real ip fallback",
			headers: map[string]string{"X-Real-IP": "10.9.9.9"},
			want:    "10.9.9.9",
		},
		{
			name:    "remote addr default",
			headers: nil,
			want:    "192.0.2.1:1234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, remoteAddr(req))
		})
	}
}
