package tidelog

import (
	"github.com/hyp3rd/ewrap"
)

// Common errors for the logging runtime.
var (
	// ErrLoggerNotFound is returned when a LoggerHandle does not resolve in
	// the registry, typically because the logger was removed.
	ErrLoggerNotFound = ewrap.New("logger not found in registry")

	// ErrRuntimeShutdown is returned when an operation reaches a runtime
	// that has already been shut down.
	ErrRuntimeShutdown = ewrap.New("runtime is shut down")

	// ErrInvalidConfig is returned when a logger configuration fails
	// validation.
	ErrInvalidConfig = ewrap.New("invalid logger configuration")

	// ErrInvalidLevel is returned when a level name cannot be parsed.
	ErrInvalidLevel = ewrap.New("invalid log level")

	// ErrPayloadAllocation is returned when the payload manager cannot
	// satisfy an allocation, usually because its byte budget is exhausted.
	ErrPayloadAllocation = ewrap.New("payload allocation failed")

	// ErrInvalidPayload is returned when a dispatched payload handle does
	// not resolve in the target logger's payload manager.
	ErrInvalidPayload = ewrap.New("payload handle is invalid for this logger")
)
