package gin

import "github.com/tidelog/tidelog"

// Config defines the configuration options for the Gin middleware.
type Config struct {
	// Logger receives one record per request. A nil Logger disables
	// request logging without disabling the middleware.
	Logger *tidelog.Logger

	// IncludeHeaders names request headers to attach as fields.
	IncludeHeaders []string

	// ContextExtractor derives extra fields from the *gin.Context.
	ContextExtractor func(c any) []tidelog.Field

	// CaptureRequestID attaches the X-Request-ID header when present.
	CaptureRequestID bool

	LatencyFieldName string
	StatusFieldName  string

	// EnableRecovery makes Recovery trap handler panics and answer 500.
	EnableRecovery bool
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
