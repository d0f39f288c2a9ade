//go:build fiber_integration

package fiber

import (
	"strconv"
	"time"

	fiber "github.com/gofiber/fiber/v3"

	"github.com/tidelog/tidelog"
	"github.com/tidelog/tidelog/internal/constants"
)

// Handler is an alias for the Fiber middleware handler function type.
type Handler = fiber.Handler

// Middleware returns a fiber middleware that appends one record per request
// to the configured logger's dispatch queue.
func Middleware(cfg Config) fiber.Handler {
	cfg = cfg.withDefaults()

	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()

		fields := make([]tidelog.Field, 0, 8+len(cfg.IncludeHeaders))
		fields = append(fields,
			tidelog.Str("method", c.Method()),
			tidelog.Str("path", string(c.Request().URI().Path())),
			tidelog.Str("ip", c.IP()),
			tidelog.Str(cfg.StatusFieldName, fiberStatusText(status)),
			tidelog.Duration(cfg.LatencyFieldName, latency),
		)

		if id := c.Get(constants.TraceHeader); id != "" {
			fields = append(fields, tidelog.Str("trace_id", id))
		}

		if cfg.CaptureRequestID {
			if id := c.GetRespHeader(constants.RequestHeader); id != "" {
				fields = append(fields, tidelog.Str("request_id", id))
			}
		}

		for _, header := range cfg.IncludeHeaders {
			if value := c.Get(header); value != "" {
				fields = append(fields, tidelog.Str("header_"+header, value))
			}
		}

		if extractor := cfg.ContextExtractor; extractor != nil {
			fields = append(fields, extractor(c)...)
		}

		logger := cfg.Logger.WithFields(fields...)

		if err != nil {
			logger.WithError(err).Error("fiber request completed with error")

			return err
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error("fiber request returned server error")

			return nil
		}

		logger.Info("fiber request completed")

		return nil
	}
}

// DefaultContextExtractor pulls the matched route and raw query out of a
// fiber context.
func DefaultContextExtractor(ctx any) []tidelog.Field {
	c, ok := ctx.(fiber.Ctx)
	if !ok || c == nil {
		return nil
	}

	fields := make([]tidelog.Field, 0, 2)

	if route := c.Route(); route != nil {
		fields = append(fields, tidelog.Str("route", route.Path))
	}

	if query := string(c.Request().URI().QueryString()); query != "" {
		fields = append(fields, tidelog.Str("query", query))
	}

	return fields
}

func fiberStatusText(status int) string {
	if text := fiber.StatusMessage(status); text != "" {
		return text
	}

	return strconv.Itoa(status)
}
