//go:build chi_integration

package chi

import (
	"net/http"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/tidelog/tidelog"
	"github.com/tidelog/tidelog/internal/constants"
)

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

// Middleware returns a chi middleware that appends one record per request
// to the configured logger's dispatch queue. Records are delivered by the
// runtime's update cycles, so the handler path never blocks on a sink.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()

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

			fields := make([]tidelog.Field, 0, 8+len(cfg.IncludeHeaders))
			fields = append(fields,
				tidelog.Str("method", r.Method),
				tidelog.Str("path", r.URL.Path),
				tidelog.Str("host", r.Host),
				tidelog.Str("remote_addr", remoteAddr(r)),
				tidelog.Int(cfg.StatusFieldName, status),
				tidelog.Duration(cfg.LatencyFieldName, latency),
			)

			if id, ok := constants.TraceIDFrom(r.Context()); ok {
				fields = append(fields, tidelog.Str("trace_id", id))
			} else if id := r.Header.Get(constants.TraceHeader); id != "" {
				fields = append(fields, tidelog.Str("trace_id", id))
			}

			if cfg.CaptureRequestID {
				if id, ok := constants.RequestIDFrom(r.Context()); ok {
					fields = append(fields, tidelog.Str("request_id", id))
				} else if id := r.Header.Get(constants.RequestHeader); id != "" {
					fields = append(fields, tidelog.Str("request_id", id))
				}
			}

			for _, header := range cfg.IncludeHeaders {
				if value := r.Header.Get(header); value != "" {
					fields = append(fields, tidelog.Str("header_"+strings.ToLower(header), value))
				}
			}

			if extractor := cfg.ContextExtractor; extractor != nil {
				fields = append(fields, extractor(r)...)
			}

			logger := cfg.Logger.WithFields(fields...)

			if status >= http.StatusInternalServerError {
				logger.Error("chi request returned server error")

				return
			}

			logger.Info("chi request completed")
		})
	}
}

// DefaultContextExtractor pulls the matched route pattern, URL parameters,
// and raw query out of a chi-routed *http.Request.
func DefaultContextExtractor(ctx any) []tidelog.Field {
	r, ok := ctx.(*http.Request)
	if !ok || r == nil {
		return nil
	}

	fields := make([]tidelog.Field, 0, 3)

	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			fields = append(fields, tidelog.Str("route", pattern))
		}

		for i, key := range routeCtx.URLParams.Keys {
			fields = append(fields, tidelog.Str("param_"+key, routeCtx.URLParams.Values[i]))
		}
	}

	if query := r.URL.RawQuery; query != "" {
		fields = append(fields, tidelog.Str("query", query))
	}

	return fields
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
