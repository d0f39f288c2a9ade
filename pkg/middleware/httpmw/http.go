// Package httpmw provides net/http middleware that threads request
// identifiers through the context and logs completed requests through a
// tidelog.Logger.
package httpmw

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/tidelog/tidelog"
	"github.com/tidelog/tidelog/internal/constants"
)

const randomIDLength = 16

// Option configures the behaviour of the middleware.
type Option func(*options)

type options struct {
	traceHeader    string
	requestHeader  string
	idGenerator    func() string
	generateIfMiss bool
}

// WithTraceHeader configures the header used to populate the trace id.
func WithTraceHeader(name string) Option {
	return func(o *options) {
		if name != "" {
			o.traceHeader = name
		}
	}
}

// WithRequestHeader configures the header used to populate the request id.
func WithRequestHeader(name string) Option {
	return func(o *options) {
		if name != "" {
			o.requestHeader = name
		}
	}
}

// WithIDGenerator provides a custom generator used when headers are missing.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.idGenerator = fn
		}
	}
}

// WithGenerateMissingIDs instructs the middleware to create ids when headers
// are absent.
func WithGenerateMissingIDs(enable bool) Option {
	return func(o *options) {
		o.generateIfMiss = enable
	}
}

func buildOptions(opts []Option) options {
	cfg := options{
		traceHeader:    constants.TraceHeader,
		requestHeader:  constants.RequestHeader,
		idGenerator:    randomID,
		generateIfMiss: true,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// ContextMiddleware enriches the request context with the trace and request
// identifiers the logger's context extractors understand.
func ContextMiddleware(opts ...Option) func(http.Handler) http.Handler {
	cfg := buildOptions(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if traceID := headerOrGenerated(r, cfg.traceHeader, cfg); traceID != "" {
				ctx = constants.WithTraceID(ctx, traceID)
			}

			if reqID := headerOrGenerated(r, cfg.requestHeader, cfg); reqID != "" {
				ctx = constants.WithRequestID(ctx, reqID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func headerOrGenerated(r *http.Request, header string, cfg options) string {
	if value := r.Header.Get(header); value != "" {
		return value
	}

	if cfg.generateIfMiss {
		return cfg.idGenerator()
	}

	return ""
}

// Logging returns middleware that times each request and records its
// method, path, status, and latency through log. Server errors log at
// error level, everything else at info.
func Logging(log *tidelog.Logger, opts ...Option) func(http.Handler) http.Handler {
	cfg := buildOptions(opts)

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := &responseWriter{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(recorder, r)

			latency := time.Since(start)
			status := recorder.Status()

			fields := make([]tidelog.Field, 0, 8)
			fields = append(fields,
				tidelog.Str("method", r.Method),
				tidelog.Str("path", r.URL.Path),
				tidelog.Str("host", r.Host),
				tidelog.Str("remote_addr", remoteAddr(r)),
				tidelog.Int("status", status),
				tidelog.Duration("duration", latency),
			)

			ctx := r.Context()

			if id, ok := constants.TraceIDFrom(ctx); ok {
				fields = append(fields, tidelog.Str("trace_id", id))
			} else if id := r.Header.Get(cfg.traceHeader); id != "" {
				fields = append(fields, tidelog.Str("trace_id", id))
			}

			if id, ok := constants.RequestIDFrom(ctx); ok {
				fields = append(fields, tidelog.Str("request_id", id))
			} else if id := r.Header.Get(cfg.requestHeader); id != "" {
				fields = append(fields, tidelog.Str("request_id", id))
			}

			if status >= http.StatusInternalServerError {
				log.Error("request returned server error", fields...)

				return
			}

			log.Info("request completed", fields...)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.status = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Status() int {
	if rw.status == 0 {
		return http.StatusOK
	}

	return rw.status
}

func remoteAddr(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		parts := strings.Split(ip, ",")

		return strings.TrimSpace(parts[0])
	}

	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	return r.RemoteAddr
}

func randomID() string {
	bytes := make([]byte, randomIDLength)

	_, err := rand.Read(bytes)
	if err != nil {
		return ""
	}

	return hex.EncodeToString(bytes)
}
