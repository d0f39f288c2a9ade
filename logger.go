// Package tidelog implements a high-throughput structured logging runtime
// built around handle-based payload memory and double-buffered dispatch
// queues.
//
// This package provides:
// - Multiple log levels (Trace, Debug, Info, Warn, Error, Fatal)
// - Structured logging with typed fields
// - Concurrent appends into per-logger double-buffered dispatch queues
// - Handle-based payload memory with budgets and leak reporting
// - Constant and function decorators, global or scoped to one logger
// - Dependency-ordered update pipelines with parallel sink reads
// - Synchronous fatal draining and asynchronous batch scheduling
// - Optional stack trace capture above a severity threshold
//
// A Runtime owns any number of loggers. Each logger has its own payload
// memory manager, its own dispatch queue, and its own sinks; a record
// becomes immutable payload bytes at the call site and flows through one
// sorted batch to every sink before its memory is reclaimed.
//
// Basic usage:
//
//	rt := tidelog.NewRuntime(tidelog.DefaultRuntimeOptions())
//	defer rt.Shutdown()
//
//	log, err := rt.CreateLogger(tidelog.Config{
//		Name:  "app",
//		Sinks: []tidelog.Sink{console},
//	})
//	if err != nil {
//		panic(err)
//	}
//
//	log.Info("application started", tidelog.Str("version", "1.0.0"))
//
// Records are delivered by update cycles: call rt.ScheduleUpdateAll(nil)
// periodically, or rt.FlushAll() to deliver everything appended so far.
// rt.Shutdown() performs a final drain of every logger.
package tidelog

import (
	"context"
	"fmt"
)

// Logger is the front end of one registered logger: a small value around a
// runtime handle. All methods are safe for concurrent use, and loggers
// derived with WithFields share the underlying queue and memory manager.
//
// A fatal record on a logger in Synchronous mode drains the full pipeline
// before the call returns; no method terminates the process.
type Logger struct {
	rt          *Runtime
	handle      LoggerHandle
	name        string
	minLevel    Level
	synchronous bool
	bound       []Field
}

// NewNoop returns a logger that discards every record. It belongs to no
// runtime, which makes it a safe default wherever a logger is optional.
func NewNoop() *Logger {
	return &Logger{name: "noop", minLevel: FatalLevel + 1}
}

// Handle returns the logger's runtime handle.
func (l *Logger) Handle() LoggerHandle {
	return l.handle
}

// Name returns the logger's configured name.
func (l *Logger) Name() string {
	return l.name
}

// Enabled reports whether the logger records at level.
func (l *Logger) Enabled(level Level) bool {
	return level.IsValid() && level >= l.minLevel
}

// WithFields returns a logger that attaches fields to every record.
func (l *Logger) WithFields(fields ...Field) *Logger {
	if len(fields) == 0 {
		return l
	}

	clone := *l
	clone.bound = make([]Field, 0, len(l.bound)+len(fields))
	clone.bound = append(clone.bound, l.bound...)
	clone.bound = append(clone.bound, fields...)

	return &clone
}

// WithField returns a logger that attaches a single field to every record.
func (l *Logger) WithField(key string, value any) *Logger {
	return l.WithFields(Any(key, value))
}

// WithError returns a logger that attaches err to every record.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	return l.WithFields(Error("error", err))
}

// WithContext returns a logger that attaches the fields the registered
// global context extractors pull out of ctx. Extraction happens once, at
// call time.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	fields := ApplyContextExtractors(ctx, GlobalContextExtractors()...)
	if len(fields) == 0 {
		return l
	}

	return l.WithFields(fields...)
}

// Trace records msg at TraceLevel.
func (l *Logger) Trace(msg string, fields ...Field) {
	l.log(TraceLevel, msg, fields)
}

// Debug records msg at DebugLevel.
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(DebugLevel, msg, fields)
}

// Info records msg at InfoLevel.
func (l *Logger) Info(msg string, fields ...Field) {
	l.log(InfoLevel, msg, fields)
}

// Warn records msg at WarnLevel.
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(WarnLevel, msg, fields)
}

// Error records msg at ErrorLevel.
func (l *Logger) Error(msg string, fields ...Field) {
	l.log(ErrorLevel, msg, fields)
}

// Fatal records msg at FatalLevel. In Synchronous mode the call returns
// only after every sink has observed the record.
func (l *Logger) Fatal(msg string, fields ...Field) {
	l.log(FatalLevel, msg, fields)
}

// Tracef records a formatted message at TraceLevel.
func (l *Logger) Tracef(format string, args ...any) {
	l.log(TraceLevel, fmt.Sprintf(format, args...), nil)
}

// Debugf records a formatted message at DebugLevel.
func (l *Logger) Debugf(format string, args ...any) {
	l.log(DebugLevel, fmt.Sprintf(format, args...), nil)
}

// Infof records a formatted message at InfoLevel.
func (l *Logger) Infof(format string, args ...any) {
	l.log(InfoLevel, fmt.Sprintf(format, args...), nil)
}

// Warnf records a formatted message at WarnLevel.
func (l *Logger) Warnf(format string, args ...any) {
	l.log(WarnLevel, fmt.Sprintf(format, args...), nil)
}

// Errorf records a formatted message at ErrorLevel.
func (l *Logger) Errorf(format string, args ...any) {
	l.log(ErrorLevel, fmt.Sprintf(format, args...), nil)
}

// Fatalf records a formatted message at FatalLevel.
func (l *Logger) Fatalf(format string, args ...any) {
	l.log(FatalLevel, fmt.Sprintf(format, args...), nil)
}

// Log records msg at an arbitrary level.
func (l *Logger) Log(level Level, msg string, fields ...Field) {
	l.log(level, msg, fields)
}

func (l *Logger) log(level Level, msg string, fields []Field) {
	if !l.Enabled(level) {
		return
	}

	lk, err := l.rt.acquireScopedLock(l.handle)
	if err != nil {
		l.rt.counters.dropped.Add(1)
		l.rt.diag.reportf("logger %s: record dropped: %v", l.name, err)

		return
	}
	defer lk.Dispose()

	if len(l.bound) > 0 {
		merged := make([]Field, 0, len(l.bound)+len(fields))
		merged = append(merged, l.bound...)
		merged = append(merged, fields...)
		fields = merged
	}

	ctrl := lk.ctrl
	ctrl.appendRecord(l.rt, lk, level, msg, fields)

	if level == FatalLevel && ctrl.synchronous {
		// The record and everything queued before it must reach the sinks
		// before a fatal call returns.
		ctrl.drain(lk)
	}
}
