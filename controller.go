package tidelog

import (
	"github.com/tidelog/tidelog/dispatch"
	"github.com/tidelog/tidelog/internal/spinlock"
	"github.com/tidelog/tidelog/payload"
	"github.com/tidelog/tidelog/stacktrace"
)

// captureSkipFrames hides log and appendRecord from captured stack traces.
// The level wrapper may remain as the first frame when the compiler does
// not inline it; the call site is never skipped.
const captureSkipFrames = 2

// controller owns one logger's moving parts: its dispatch queue, its
// payload manager, its sinks, and the task chain that drains them. All
// fields are fixed at construction; inFlightMu serializes update-cycle
// chaining only.
type controller struct {
	handle LoggerHandle
	name   string

	queue   *dispatch.Queue
	manager *payload.Manager
	sinks   []Sink
	traces  *stacktrace.Registry
	clock   ClockFunc

	minLevel      Level
	synchronous   bool
	captureStacks bool
	stackLevel    Level

	inFlightMu spinlock.SpinLock
	inFlight   *TaskHandle

	counters *statsCounters
	diag     *diagnostics
}

func newController(rt *Runtime, handle LoggerHandle, cfg Config) *controller {
	clock := cfg.Clock
	if clock == nil {
		clock = rt.clock
	}

	return &controller{
		handle: handle,
		name:   cfg.Name,
		queue:  dispatch.NewQueue(cfg.QueueCapacity),
		manager: payload.NewManager(payload.Options{
			Name:         cfg.Name,
			InitialSlots: cfg.PayloadInitialSlots,
			BudgetBytes:  cfg.PayloadBudgetBytes,
		}),
		sinks:         append([]Sink(nil), cfg.Sinks...),
		traces:        rt.traces,
		clock:         clock,
		minLevel:      cfg.MinimumLevel,
		synchronous:   cfg.Synchronous,
		captureStacks: cfg.CaptureStackTraces,
		stackLevel:    cfg.StackTraceLevel,
		counters:      &rt.counters,
		diag:          rt.diag,
	}
}

// appendRecord assembles one record and places it on the queue. The caller
// holds lk. The record's handle list orders the message payload first,
// then function decorator output, then global constants, then
// logger-scoped constants.
//
// A failed message allocation drops the record; failed decorations degrade
// it instead, so the message still ships without them.
func (c *controller) appendRecord(rt *Runtime, lk *ScopedLock, level Level, msg string, fields []Field) {
	mgr := lk.Manager()

	fns, globalConsts, scopedConsts := rt.decorators.decorationsFor(c.handle)

	buf := payload.AppendMessage(nil, []byte(msg))
	for _, f := range fields {
		buf = appendFieldChunk(buf, f)
	}

	head := mgr.AllocateCopy(buf)
	if !head.IsValid() {
		c.drop("message allocation failed")

		return
	}

	handles := make([]payload.Handle, 0, 2+len(globalConsts)+len(scopedConsts))
	handles = append(handles, head)

	if h := c.runFunctionDecorators(mgr, fns); h.IsValid() {
		handles = append(handles, h)
	}

	for _, gh := range globalConsts {
		if ch := mgr.Copy(rt.global, gh); ch.IsValid() {
			handles = append(handles, ch)
		}
	}

	for _, sh := range scopedConsts {
		if ch := mgr.Copy(mgr, sh); ch.IsValid() {
			handles = append(handles, ch)
		}
	}

	final := handles[0]

	if len(handles) > 1 {
		final = mgr.BuildDisjointed(handles...)
		if !final.IsValid() {
			for _, h := range handles {
				mgr.Release(h, false)
			}

			c.drop("record assembly failed")

			return
		}
	}

	var traceID uint64
	if c.captureStacks && level >= c.stackLevel {
		traceID = c.traces.Capture(captureSkipFrames)
	}

	c.queue.Append(dispatch.Message{
		Payload:      final,
		Timestamp:    c.clock(),
		StackTraceID: traceID,
		SinkID:       dispatch.AllSinks,
		Level:        uint8(level),
	})

	c.counters.dispatched.Add(1)
}

// runFunctionDecorators invokes fns and encodes their combined output into
// one payload. It returns InvalidHandle when there is nothing to add or
// the allocation failed.
func (c *controller) runFunctionDecorators(mgr *payload.Manager, fns []FunctionDecorator) payload.Handle {
	if len(fns) == 0 {
		return payload.InvalidHandle
	}

	var deco Decoration
	for _, fn := range fns {
		fn(&deco)
	}

	if len(deco.fields) == 0 {
		return payload.InvalidHandle
	}

	var buf []byte
	for _, f := range deco.fields {
		buf = appendFieldChunk(buf, f)
	}

	h := mgr.AllocateCopy(buf)
	if !h.IsValid() {
		c.diag.reportf("logger %s: decoration allocation failed, record ships undecorated", c.name)
	}

	return h
}

func (c *controller) drop(reason string) {
	c.counters.dropped.Add(1)
	c.diag.reportf("logger %s: record dropped: %s", c.name, reason)
}

// scheduleUpdate schedules one update cycle: sort, then every sink in
// parallel, then cleanup. Cycles chain on the previous cycle's completion
// so two never overlap on the same logger; dep (when non-nil) additionally
// orders the cycle after caller-supplied work. The returned handle
// completes when cleanup has flipped the queue and updated the manager.
//
// lk must stay valid until the returned task completes; the batch
// scheduler and the synchronous drain paths both guarantee that.
func (c *controller) scheduleUpdate(lk *ScopedLock, dep *TaskHandle) *TaskHandle {
	c.inFlightMu.Lock()

	deps := make([]*TaskHandle, 0, 2)
	if c.inFlight != nil {
		deps = append(deps, c.inFlight)
	}

	if dep != nil {
		deps = append(deps, dep)
	}

	sortTask := Schedule(func() { lk.Queue().Sort() }, deps...)

	sinkTasks := make([]*TaskHandle, 0, len(c.sinks)+1)
	for _, s := range c.sinks {
		sinkTasks = append(sinkTasks, s.ScheduleUpdate(lk, sortTask))
	}

	// Cleanup waits on the sort directly as well, so a logger with no
	// sinks still drains in order.
	cleanupDeps := append(sinkTasks, sortTask)
	cleanup := Schedule(func() { c.cleanup(lk) }, cleanupDeps...)

	c.inFlight = cleanup
	c.inFlightMu.Unlock()

	return cleanup
}

// cleanup performs the destructive read of the cycle: it releases every
// drained record's payload and stack trace, flips the queue, and advances
// the manager's deferred-release epoch.
func (c *controller) cleanup(lk *ScopedLock) {
	q := lk.Queue()
	mgr := lk.Manager()

	records := q.BeginReadExclusive()
	for i := range records {
		rec := &records[i]

		if rec.Payload.IsValid() && !mgr.Release(rec.Payload, false) {
			// Still pinned somewhere; hand it to the deferred queue
			// rather than leak it.
			mgr.ReleaseDeferred(rec.Payload)
		}

		if rec.StackTraceID != 0 {
			c.traces.Release(rec.StackTraceID)
		}
	}
	q.EndReadExclusiveAndFlip()

	mgr.Update()

	c.counters.cyclesCompleted.Add(1)
}

// drain runs complete update cycles until both queue buffers are empty.
// Two passes suffice when no appender is racing: the first delivers the
// frozen buffer, the second delivers what was accumulating during the
// first.
func (c *controller) drain(lk *ScopedLock) {
	c.scheduleUpdate(lk, nil).Wait()
	c.scheduleUpdate(lk, nil).Wait()
}

// dispose flushes and tears down the logger. The caller holds the registry
// lock exclusively, so no new scoped locks or appends can start.
func (c *controller) dispose(rt *Runtime) {
	scoped := rt.decorators.removeLoggerScoped(c.handle)

	c.manager.LockRead()

	for _, h := range scoped {
		c.manager.ReleaseDeferred(h)
	}

	c.drain(rt.borrowScopedLock(c))

	c.manager.UnlockRead()

	for _, s := range c.sinks {
		if err := s.Flush(); err != nil {
			c.diag.reportf("logger %s: sink flush: %v", c.name, err)
		}

		if err := s.Dispose(); err != nil {
			c.diag.reportf("logger %s: sink dispose: %v", c.name, err)
		}
	}

	if report := c.manager.Shutdown(); report.Leaked() {
		c.diag.reportf("logger %s: leaked payloads: %d allocations, %d bytes",
			c.name, report.Allocations, report.Bytes)
	}
}
