package tidelog

// ConfigBuilder provides a fluent API for constructing logger
// configurations. It allows for more readable and chainable configuration
// setup.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder creates a new builder seeded with DefaultConfig.
// This is the entry point for the fluent configuration API.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: DefaultConfig()}
}

// WithName sets the logger name used in diagnostics and leak reports.
// Example: builder.WithName("checkout").
func (b *ConfigBuilder) WithName(name string) *ConfigBuilder {
	b.config.Name = name

	return b
}

// WithMinimumLevel sets the lowest level the logger records.
// Example: builder.WithMinimumLevel(tidelog.DebugLevel).
func (b *ConfigBuilder) WithMinimumLevel(level Level) *ConfigBuilder {
	b.config.MinimumLevel = level

	return b
}

// WithDebugLevel is a convenience method for WithMinimumLevel(DebugLevel).
func (b *ConfigBuilder) WithDebugLevel() *ConfigBuilder {
	return b.WithMinimumLevel(DebugLevel)
}

// WithInfoLevel is a convenience method for WithMinimumLevel(InfoLevel).
func (b *ConfigBuilder) WithInfoLevel() *ConfigBuilder {
	return b.WithMinimumLevel(InfoLevel)
}

// WithSynchronous enables or disables the synchronous fatal drain.
// Example: builder.WithSynchronous(true).
func (b *ConfigBuilder) WithSynchronous(enabled bool) *ConfigBuilder {
	b.config.Synchronous = enabled

	return b
}

// WithQueueCapacity sets the initial per-cycle record capacity of the
// dispatch queue. Example: builder.WithQueueCapacity(4096).
func (b *ConfigBuilder) WithQueueCapacity(capacity int) *ConfigBuilder {
	b.config.QueueCapacity = capacity

	return b
}

// WithPayloadBudget caps the live payload bytes of the logger's memory
// manager. Example: builder.WithPayloadBudget(16 << 20).
func (b *ConfigBuilder) WithPayloadBudget(bytes int64) *ConfigBuilder {
	b.config.PayloadBudgetBytes = bytes

	return b
}

// WithPayloadSlots pre-sizes the handle table of the logger's memory
// manager. Example: builder.WithPayloadSlots(256).
func (b *ConfigBuilder) WithPayloadSlots(slots int) *ConfigBuilder {
	b.config.PayloadInitialSlots = slots

	return b
}

// WithStackTraces enables or disables stack trace capture.
// Example: builder.WithStackTraces(true).
func (b *ConfigBuilder) WithStackTraces(enable bool) *ConfigBuilder {
	b.config.CaptureStackTraces = enable

	return b
}

// WithStackTraceLevel sets the lowest level that captures a stack trace.
// Example: builder.WithStackTraceLevel(tidelog.WarnLevel).
func (b *ConfigBuilder) WithStackTraceLevel(level Level) *ConfigBuilder {
	b.config.StackTraceLevel = level

	return b
}

// WithSink appends a sink to the logger.
// Example: builder.WithSink(console).
func (b *ConfigBuilder) WithSink(sink Sink) *ConfigBuilder {
	if sink != nil {
		b.config.Sinks = append(b.config.Sinks, sink)
	}

	return b
}

// WithSinks appends multiple sinks to the logger.
func (b *ConfigBuilder) WithSinks(sinks ...Sink) *ConfigBuilder {
	for _, sink := range sinks {
		b.WithSink(sink)
	}

	return b
}

// WithClock overrides the runtime clock for this logger's timestamps.
// Example: builder.WithClock(func() int64 { return 42 }).
func (b *ConfigBuilder) WithClock(clock ClockFunc) *ConfigBuilder {
	b.config.Clock = clock

	return b
}

// WithDevelopmentDefaults configures the logger with sensible defaults for
// development: debug level, synchronous fatal drain, and stack traces on
// errors.
func (b *ConfigBuilder) WithDevelopmentDefaults() *ConfigBuilder {
	return b.
		WithDebugLevel().
		WithSynchronous(true).
		WithStackTraces(true).
		WithStackTraceLevel(ErrorLevel)
}

// WithProductionDefaults configures the logger with sensible defaults for
// production: info level, asynchronous dispatch, no stack traces.
func (b *ConfigBuilder) WithProductionDefaults() *ConfigBuilder {
	return b.
		WithInfoLevel().
		WithSynchronous(false).
		WithStackTraces(false)
}

// Build creates a Config object from the builder.
func (b *ConfigBuilder) Build() *Config {
	config := b.config

	return &config
}
