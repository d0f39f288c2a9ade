package fiber

import "github.com/tidelog/tidelog"

// Config defines the configuration options for the Fiber middleware.
type Config struct {
	// Logger receives one record per request. A nil Logger disables
	// request logging without disabling the middleware.
	Logger *tidelog.Logger

	// IncludeHeaders names request headers to attach as fields.
	IncludeHeaders []string

	// ContextExtractor derives extra fields from the fiber context.
	ContextExtractor func(ctx any) []tidelog.Field

	// CaptureRequestID attaches the X-Request-ID response header when present.
	CaptureRequestID bool

	LatencyFieldName string
	StatusFieldName  string
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = tidelog.NewNoop()
	}

	if c.ContextExtractor == nil {
		c.ContextExtractor = DefaultContextExtractor
	}

	if c.LatencyFieldName == "" {
		c.LatencyFieldName = "latency"
	}

	if c.StatusFieldName == "" {
		c.StatusFieldName = "status"
	}

	return c
}
