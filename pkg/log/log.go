// Package log provides application-level logging for services.
//
// This package wraps the runtime in a convenience façade: a lazily created
// process-wide Runtime driven by a background flush loop, plus one-call
// logger construction tuned to the environment (production or
// non-production):
//
// - In non-production environments: Debug level with readable text output
// - In production environments: Info level with structured JSON output
// - Stack trace capture for error records
// - Service name and environment bound as fields on every record
//
// Usage:
//
//	logger, err := log.New("development", "user-service")
//	if err != nil {
//		panic(err)
//	}
//	defer log.ShutdownDefault()
//
//	logger.Info("service started")
//	logger.WithField("user", userID).Debug("user authenticated")
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/tidelog/tidelog"
	"github.com/tidelog/tidelog/internal/constants"
	"github.com/tidelog/tidelog/pkg/format"
	"github.com/tidelog/tidelog/pkg/sinks"
)

// DefaultFlushInterval is how often the default runtime's background loop
// schedules an update batch.
const DefaultFlushInterval = 250 * time.Millisecond

// stdout is the destination for loggers this package creates. Tests swap it.
var stdout io.Writer = os.Stdout

var (
	mu         sync.Mutex
	defRuntime *tidelog.Runtime
	defLogger  *tidelog.Logger
	stopFlush  chan struct{}
	flushDone  chan struct{}
)

// Default returns the process-wide runtime, creating it on first call. A
// background loop schedules an update batch every DefaultFlushInterval, so
// records logged through it reach their sinks without manual flushing.
func Default() *tidelog.Runtime {
	mu.Lock()
	defer mu.Unlock()

	return defaultLocked()
}

func defaultLocked() *tidelog.Runtime {
	if defRuntime != nil {
		return defRuntime
	}

	defRuntime = tidelog.NewRuntime(tidelog.DefaultRuntimeOptions())
	stopFlush = make(chan struct{})
	flushDone = make(chan struct{})

	go flushLoop(defRuntime, stopFlush, flushDone)

	return defRuntime
}

func flushLoop(rt *tidelog.Runtime, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(DefaultFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rt.ScheduleUpdateAll(nil)
		case <-stop:
			return
		}
	}
}

// L returns the default logger: a production-tuned logger named "app" on
// the default runtime, created on first call.
func L() *tidelog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if defLogger != nil {
		return defLogger
	}

	rt := defaultLocked()

	logger, err := NewOn(rt, "", "app")
	if err != nil {
		// CreateLogger only fails on invalid config; the defaults are valid.
		return tidelog.NewNoop()
	}

	defLogger = logger

	return defLogger
}

// New creates an environment-tuned logger on the default runtime. It
// configures a console sink, level, and formatter from the environment and
// binds the service and environment names to every record.
// In non-production environments the logger records from Debug level up as
// readable text; everywhere else it records from Info level up as JSON.
func New(environment, service string) (*tidelog.Logger, error) {
	mu.Lock()
	rt := defaultLocked()
	mu.Unlock()

	return NewOn(rt, environment, service)
}

// NewOn is New against an explicitly managed runtime. Callers own the
// runtime's update cycles and shutdown.
func NewOn(rt *tidelog.Runtime, environment, service string) (*tidelog.Logger, error) {
	if rt == nil {
		return nil, ewrap.New("runtime is nil")
	}

	cfg := tidelog.DefaultConfig()
	cfg.Name = service
	cfg.CaptureStackTraces = true

	var formatter format.Formatter

	if environment == constants.NonProductionEnvironment {
		cfg.MinimumLevel = tidelog.DebugLevel

		tf := format.NewTextFormatter()
		tf.Color = format.DefaultColorConfig()
		formatter = tf
	} else {
		cfg.MinimumLevel = tidelog.InfoLevel
		formatter = format.NewJSONFormatter()
	}

	cfg.Sinks = []tidelog.Sink{sinks.NewConsoleSink(sinks.ConsoleOptions{
		Writer:    stdout,
		Formatter: formatter,
	})}

	logger, err := rt.CreateLogger(cfg)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to create logger")
	}

	return logger.WithFields(
		tidelog.Str("service", service),
		tidelog.Str("environment", environment),
	), nil
}

// ShutdownDefault stops the background flush loop and tears down the default
// runtime after a final drain. The next Default or New call starts fresh.
func ShutdownDefault() error {
	mu.Lock()
	defer mu.Unlock()

	if defRuntime == nil {
		return nil
	}

	close(stopFlush)
	<-flushDone

	err := defRuntime.Shutdown()
	defRuntime = nil
	defLogger = nil

	return err
}
