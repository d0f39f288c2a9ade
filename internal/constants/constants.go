// Package constants provides fixed values shared across the logging
// runtime: notification timeouts, HTTP header names, and the context keys
// middleware uses to hand request identifiers to the logger.
package constants

import "time"

const (
	// DefaultTimeout bounds stats handler notification at the end of an
	// update batch.
	DefaultTimeout = 5 * time.Second

	// TraceHeader is the default HTTP header for trace identifiers.
	TraceHeader = "X-Trace-ID"
	// RequestHeader is the default HTTP header for request identifiers.
	RequestHeader = "X-Request-ID"

	// NonProductionEnvironment is the environment name that selects
	// development logger defaults.
	NonProductionEnvironment = "development"
)
