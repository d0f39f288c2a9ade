//go:build gin_integration

package gin

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tidelog/tidelog"
	"github.com/tidelog/tidelog/internal/constants"
)

func Middleware(cfg Config) gin.HandlerFunc {
	cfg = cfg.withDefaults()

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := make([]tidelog.Field, 0, 8+len(cfg.IncludeHeaders))
		fields = append(fields,
			tidelog.Str("method", c.Request.Method),
			tidelog.Str("path", c.FullPath()),
			tidelog.Str("host", c.Request.Host),
			tidelog.Str("client_ip", clientIP(c)),
			tidelog.Int(cfg.StatusFieldName, status),
			tidelog.Duration(cfg.LatencyFieldName, latency),
		)

		if id, ok := constants.TraceIDFrom(c.Request.Context()); ok {
			fields = append(fields, tidelog.Str("trace_id", id))
		} else if id := c.Request.Header.Get(constants.TraceHeader); id != "" {
			fields = append(fields, tidelog.Str("trace_id", id))
		}

		if cfg.CaptureRequestID {
			if id, ok := constants.RequestIDFrom(c.Request.Context()); ok {
				fields = append(fields, tidelog.Str("request_id", id))
			} else if id := c.Request.Header.Get(constants.RequestHeader); id != "" {
				fields = append(fields, tidelog.Str("request_id", id))
			}
		}

		for _, header := range cfg.IncludeHeaders {
			if value := c.Request.Header.Get(header); value != "" {
				fields = append(fields, tidelog.Str("header_"+strings.ToLower(header), value))
			}
		}

		if extractor := cfg.ContextExtractor; extractor != nil {
			fields = append(fields, extractor(c)...)
		}

		logger := cfg.Logger.WithFields(fields...)

		if len(c.Errors) > 0 {
			for _, err := range c.Errors {
				logger.WithError(err).Error("gin request completed with error")
			}

			return
		}

		if status >= http.StatusInternalServerError {
			logger.Error("gin request returned server error")

			return
		}

		logger.Info("gin request completed")
	}
}

func Recovery(cfg Config) gin.HandlerFunc {
	cfg = cfg.withDefaults()

	return func(c *gin.Context) {
		if cfg.EnableRecovery {
			defer func() {
				if rec := recover(); rec != nil {
					fields := []tidelog.Field{
						tidelog.Any("panic", rec),
						tidelog.Str("path", c.FullPath()),
						tidelog.Str("method", c.Request.Method),
						tidelog.Str("stack", string(debug.Stack())),
					}

					cfg.Logger.WithFields(fields...).Error("gin panic recovered")
					c.AbortWithStatus(http.StatusInternalServerError)
				}
			}()
		}

		c.Next()
	}
}

func DefaultContextExtractor(ctx any) []tidelog.Field {
	c, ok := ctx.(*gin.Context)
	if !ok || c == nil {
		return nil
	}

	fields := make([]tidelog.Field, 0, 3)

	if route := c.FullPath(); route != "" {
		fields = append(fields, tidelog.Str("route", route))
	}

	if query := c.Request.URL.RawQuery; query != "" {
		fields = append(fields, tidelog.Str("query", query))
	}

	for _, param := range c.Params {
		fields = append(fields, tidelog.Str("param_"+param.Key, param.Value))
	}

	return fields
}

func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}

	return c.Request.RemoteAddr
}
