package sinks

import "github.com/tidelog/tidelog"

// NopSink is a sink that does nothing. It stands in where a Sink is
// required but no output is wanted.
type NopSink struct{}

// Ensure NopSink implements the Sink interface.
var _ tidelog.Sink = NopSink{}

// NewNopSink creates a NopSink.
func NewNopSink() NopSink {
	return NopSink{}
}

// ScheduleUpdate schedules no work and completes with dep.
func (NopSink) ScheduleUpdate(_ *tidelog.ScopedLock, dep *tidelog.TaskHandle) *tidelog.TaskHandle {
	if dep != nil {
		return dep
	}

	return tidelog.CompletedTask()
}

// Flush does nothing.
func (NopSink) Flush() error { return nil }

// Dispose does nothing.
func (NopSink) Dispose() error { return nil }
