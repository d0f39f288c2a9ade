package tidelog

import (
	"io"

	"github.com/hyp3rd/ewrap"

	"github.com/tidelog/tidelog/dispatch"
	"github.com/tidelog/tidelog/payload"
)

const (
	// DefaultLevel is the default minimum level for new loggers.
	DefaultLevel = InfoLevel
	// DefaultQueueCapacity is the default per-cycle record capacity of a
	// logger's dispatch queue.
	DefaultQueueCapacity = dispatch.DefaultCapacity
	// DefaultDiagnosticsPerSecond caps how many internal diagnostic lines
	// the runtime emits per second.
	DefaultDiagnosticsPerSecond = 10
)

// Config holds the configuration of one logger.
type Config struct {
	// Name identifies the logger in diagnostics and leak reports.
	Name string `mapstructure:"name"`
	// MinimumLevel is the lowest level the logger records.
	MinimumLevel Level `mapstructure:"minimum_level"`
	// Synchronous drains the full pipeline inline when a fatal record is
	// appended, so the call returns only after every sink observed it.
	Synchronous bool `mapstructure:"synchronous"`
	// QueueCapacity is the initial per-cycle record capacity of the
	// dispatch queue. The queue grows past it under load.
	QueueCapacity int `mapstructure:"queue_capacity"`
	// PayloadBudgetBytes caps the live payload bytes of the logger's
	// memory manager.
	PayloadBudgetBytes int64 `mapstructure:"payload_budget_bytes"`
	// PayloadInitialSlots pre-sizes the handle table of the logger's
	// memory manager.
	PayloadInitialSlots int `mapstructure:"payload_initial_slots"`
	// CaptureStackTraces enables stack trace capture for records at or
	// above StackTraceLevel.
	CaptureStackTraces bool `mapstructure:"capture_stack_traces"`
	// StackTraceLevel is the lowest level that captures a stack trace. The
	// zero value selects ErrorLevel when capture is enabled.
	StackTraceLevel Level `mapstructure:"stack_trace_level"`
	// Sinks receive the logger's records. A logger without sinks still
	// runs its update cycles and discards records at cleanup.
	Sinks []Sink `mapstructure:"-"`
	// Clock overrides the runtime clock for this logger's timestamps.
	Clock ClockFunc `mapstructure:"-"`
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Name:                "app",
		MinimumLevel:        DefaultLevel,
		Synchronous:         false,
		QueueCapacity:       DefaultQueueCapacity,
		PayloadBudgetBytes:  payload.DefaultBudget,
		PayloadInitialSlots: payload.DefaultInitialSlots,
		CaptureStackTraces:  false,
		StackTraceLevel:     ErrorLevel,
		Sinks:               nil,
		Clock:               nil,
	}
}

// ProductionConfig returns a configuration optimized for production
// environments: asynchronous dispatch and no stack trace capture.
func ProductionConfig() Config {
	config := DefaultConfig()
	config.MinimumLevel = InfoLevel
	config.Synchronous = false
	config.CaptureStackTraces = false

	return config
}

// DevelopmentConfig returns a configuration optimized for development
// environments: verbose output, synchronous dispatch, and stack traces
// on errors.
func DevelopmentConfig() Config {
	config := DefaultConfig()
	config.MinimumLevel = DebugLevel
	config.Synchronous = true
	config.CaptureStackTraces = true
	config.StackTraceLevel = ErrorLevel

	return config
}

// Validate reports whether the configuration is usable.
func (c Config) Validate() error {
	if !c.MinimumLevel.IsValid() {
		return ewrap.Wrapf(ErrInvalidConfig, "minimum level %d out of range", uint8(c.MinimumLevel))
	}

	if c.CaptureStackTraces && !c.StackTraceLevel.IsValid() {
		return ewrap.Wrapf(ErrInvalidConfig, "stack trace level %d out of range", uint8(c.StackTraceLevel))
	}

	if c.QueueCapacity < 0 {
		return ewrap.Wrapf(ErrInvalidConfig, "queue capacity %d is negative", c.QueueCapacity)
	}

	if c.PayloadBudgetBytes < 0 {
		return ewrap.Wrapf(ErrInvalidConfig, "payload budget %d is negative", c.PayloadBudgetBytes)
	}

	if c.PayloadInitialSlots < 0 {
		return ewrap.Wrapf(ErrInvalidConfig, "payload slot count %d is negative", c.PayloadInitialSlots)
	}

	return nil
}

// normalized returns a copy with zero values replaced by defaults.
func (c Config) normalized() Config {
	if c.Name == "" {
		c.Name = "app"
	}

	if c.QueueCapacity == 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}

	if c.PayloadBudgetBytes == 0 {
		c.PayloadBudgetBytes = payload.DefaultBudget
	}

	if c.PayloadInitialSlots == 0 {
		c.PayloadInitialSlots = payload.DefaultInitialSlots
	}

	if c.CaptureStackTraces && c.StackTraceLevel == TraceLevel {
		c.StackTraceLevel = ErrorLevel
	}

	return c
}

// RuntimeOptions holds process-wide settings shared by every logger of a
// Runtime.
type RuntimeOptions struct {
	// Clock supplies timestamps for loggers that do not override it.
	Clock ClockFunc
	// GlobalPayloadBudgetBytes caps the live bytes of the global decorator
	// manager.
	GlobalPayloadBudgetBytes int64
	// GlobalPayloadInitialSlots pre-sizes the global decorator manager.
	GlobalPayloadInitialSlots int
	// DiagnosticWriter receives the runtime's internal diagnostic lines.
	// Defaults to os.Stderr.
	DiagnosticWriter io.Writer
	// DiagnosticsPerSecond rate-limits diagnostic lines. Zero applies
	// DefaultDiagnosticsPerSecond.
	DiagnosticsPerSecond float64
}

// DefaultRuntimeOptions returns the default runtime options.
func DefaultRuntimeOptions() RuntimeOptions {
	return RuntimeOptions{
		Clock:                     SystemClock,
		GlobalPayloadBudgetBytes:  payload.DefaultBudget,
		GlobalPayloadInitialSlots: payload.DefaultInitialSlots,
		DiagnosticWriter:          nil,
		DiagnosticsPerSecond:      DefaultDiagnosticsPerSecond,
	}
}
