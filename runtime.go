package tidelog

import (
	"context"
	"sync/atomic"

	"github.com/hyp3rd/ewrap"

	"github.com/tidelog/tidelog/dispatch"
	"github.com/tidelog/tidelog/internal/spinlock"
	"github.com/tidelog/tidelog/payload"
	"github.com/tidelog/tidelog/stacktrace"
)

// Runtime owns a set of loggers and drives their update pipelines. One
// runtime per process is typical but not required; runtimes share nothing
// except the registered stats handlers.
type Runtime struct {
	clock ClockFunc
	diag  *diagnostics

	reg        registry
	nextHandle atomic.Uint64

	// global holds payloads shared across loggers (constant decorations);
	// per-record copies migrate out of it into the owning logger's manager.
	global     *payload.Manager
	decorators decoratorTable
	traces     *stacktrace.Registry

	counters statsCounters

	batchMu   spinlock.SpinLock
	lastBatch *TaskHandle

	down atomic.Bool
}

// NewRuntime creates a runtime with the given options. Zero-value options
// fields fall back to DefaultRuntimeOptions.
func NewRuntime(opts RuntimeOptions) *Runtime {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock
	}

	return &Runtime{
		clock: clock,
		diag:  newDiagnostics(opts.DiagnosticWriter, opts.DiagnosticsPerSecond),
		global: payload.NewManager(payload.Options{
			Name:         "global",
			InitialSlots: opts.GlobalPayloadInitialSlots,
			BudgetBytes:  opts.GlobalPayloadBudgetBytes,
		}),
		traces: stacktrace.NewRegistry(),
	}
}

// CreateLogger registers a new logger and returns its façade. The handle
// inside stays valid until RemoveLogger or Shutdown.
func (rt *Runtime) CreateLogger(cfg Config) (*Logger, error) {
	if rt.down.Load() {
		return nil, ewrap.Wrap(ErrRuntimeShutdown, "create logger")
	}

	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	handle := LoggerHandle(rt.nextHandle.Add(1))
	rt.reg.add(handle, newController(rt, handle, cfg))

	return &Logger{
		rt:          rt,
		handle:      handle,
		name:        cfg.Name,
		minLevel:    cfg.MinimumLevel,
		synchronous: cfg.Synchronous,
	}, nil
}

// RemoveLogger drains, flushes, and unregisters one logger. It blocks
// until every in-flight scoped lock on the logger is disposed, then
// completes two final update cycles before tearing the logger down.
func (rt *Runtime) RemoveLogger(handle LoggerHandle) error {
	rt.reg.lock.EnterExclusive()

	ctrl := rt.reg.removeLocked(handle)
	if ctrl == nil {
		rt.reg.lock.ExitExclusive()

		return ewrap.Wrapf(ErrLoggerNotFound, "logger handle %#x", uint64(handle))
	}

	ctrl.dispose(rt)

	rt.reg.lock.ExitExclusive()

	return nil
}

// LockLogger acquires a two-tier scoped lock on handle's logger for
// low-level access to its queue and payload manager. The returned lock
// must be disposed.
func (rt *Runtime) LockLogger(handle LoggerHandle) (*ScopedLock, error) {
	return rt.acquireScopedLock(handle)
}

// Dispatch places a caller-built payload on handle's queue, stamped with
// the logger's clock. The payload must have been allocated in that
// logger's manager; ownership transfers to the queue on success.
func (rt *Runtime) Dispatch(handle LoggerHandle, h payload.Handle, level Level) error {
	return rt.dispatch(handle, h, level, dispatch.AllSinks)
}

// DispatchTo is Dispatch for a record addressed to a single sink. Only the
// sink whose id matches renders the record; every other sink skips it.
func (rt *Runtime) DispatchTo(handle LoggerHandle, h payload.Handle, level Level, sinkID int32) error {
	return rt.dispatch(handle, h, level, sinkID)
}

func (rt *Runtime) dispatch(handle LoggerHandle, h payload.Handle, level Level, sinkID int32) error {
	lk, err := rt.acquireScopedLock(handle)
	if err != nil {
		return err
	}
	defer lk.Dispose()

	if !lk.Manager().IsValid(h) {
		return ewrap.Wrapf(ErrInvalidPayload, "payload handle %#x", uint64(h))
	}

	lk.ctrl.queue.Append(dispatch.Message{
		Payload:   h,
		Timestamp: lk.ctrl.clock(),
		SinkID:    sinkID,
		Level:     uint8(level),
	})

	rt.counters.dispatched.Add(1)

	return nil
}

// ScheduleUpdate schedules one update cycle for a single logger and
// returns a handle that completes when the cycle (and the lock it
// borrowed) is fully released. dep may be nil.
func (rt *Runtime) ScheduleUpdate(handle LoggerHandle, dep *TaskHandle) (*TaskHandle, error) {
	lk, err := rt.acquireScopedLock(handle)
	if err != nil {
		return nil, err
	}

	cycle := lk.ctrl.scheduleUpdate(lk, dep)

	return Schedule(func() { lk.Dispose() }, cycle), nil
}

// ScheduleUpdateAll schedules one update cycle for every registered
// logger as a single batch. The batch holds the registry's shared lock
// and every logger's manager lock until a trailing task runs, so loggers
// cannot be removed nor payload memory torn down mid-batch. The trailing
// task also advances the global manager's epoch, flushes every sink, and
// emits a stats snapshot.
//
// Batches chain: a new batch waits for the previous one. dep may be nil.
func (rt *Runtime) ScheduleUpdateAll(dep *TaskHandle) *TaskHandle {
	rt.batchMu.Lock()

	if rt.down.Load() {
		rt.batchMu.Unlock()

		return CompletedTask()
	}

	prev := rt.lastBatch

	var gate *TaskHandle

	switch {
	case prev != nil && dep != nil:
		gate = Combine(prev, dep)
	case prev != nil:
		gate = prev
	default:
		gate = dep
	}

	rt.reg.lock.EnterRead()

	ctrls := make([]*controller, len(rt.reg.entries))
	for i := range rt.reg.entries {
		ctrls[i] = rt.reg.entries[i].ctrl
	}

	tails := make([]*TaskHandle, 0, len(ctrls))

	for _, ctrl := range ctrls {
		ctrl.manager.LockRead()
		tails = append(tails, ctrl.scheduleUpdate(rt.borrowScopedLock(ctrl), gate))
	}

	trailing := Schedule(func() { rt.finishBatch(ctrls) }, Combine(tails...))

	rt.lastBatch = trailing
	rt.batchMu.Unlock()

	return trailing
}

// finishBatch is the batch's trailing task: it runs after every logger's
// cleanup and releases the locks the batch acquired.
func (rt *Runtime) finishBatch(ctrls []*controller) {
	rt.global.LockRead()
	rt.global.Update()
	rt.global.UnlockRead()

	for _, ctrl := range ctrls {
		for _, s := range ctrl.sinks {
			if err := s.Flush(); err != nil {
				ctrl.diag.reportf("logger %s: sink flush: %v", ctrl.name, err)
			}
		}
	}

	snap := rt.statsFor(ctrls)

	for _, ctrl := range ctrls {
		ctrl.manager.UnlockRead()
	}

	rt.reg.lock.ExitRead()

	rt.counters.batchesScheduled.Add(1)
	snap.BatchesScheduled = rt.counters.batchesScheduled.Load()

	emitStats(context.Background(), snap)
}

// CompleteAll blocks until the most recently scheduled batch finishes.
func (rt *Runtime) CompleteAll() {
	rt.batchMu.Lock()
	last := rt.lastBatch
	rt.batchMu.Unlock()

	last.Wait()
}

// FlushAll synchronously delivers every record appended before the call:
// it runs two full batches, because a record appended in the current
// epoch is sorted and read one flip later.
func (rt *Runtime) FlushAll() error {
	if rt.down.Load() {
		return ewrap.Wrap(ErrRuntimeShutdown, "flush")
	}

	rt.ScheduleUpdateAll(nil).Wait()
	rt.ScheduleUpdateAll(nil).Wait()

	return nil
}

// Shutdown drains and disposes every logger, reclaims decorator payloads,
// and reports leaks through the diagnostic writer. Further use of the
// runtime fails with ErrRuntimeShutdown. Shutdown is idempotent.
func (rt *Runtime) Shutdown() error {
	if !rt.down.CompareAndSwap(false, true) {
		return nil
	}

	rt.CompleteAll()

	rt.reg.lock.EnterExclusive()

	for i := range rt.reg.entries {
		rt.reg.entries[i].ctrl.dispose(rt)
	}

	rt.reg.entries = nil

	rt.reg.lock.ExitExclusive()

	// Per-logger disposal stripped the scoped decorators; what's left in
	// the table are global constants, reclaimed here rather than leaked.
	handles := rt.decorators.drainAll()

	rt.global.LockRead()

	for _, h := range handles {
		rt.global.Release(h, true)
	}

	rt.global.UnlockRead()

	if report := rt.global.Shutdown(); report.Leaked() {
		rt.diag.reportf("global payloads leaked: %d allocations, %d bytes",
			report.Allocations, report.Bytes)
	}

	if n := rt.traces.Outstanding(); n > 0 {
		rt.diag.reportf("stack traces leaked: %d", n)
	}

	return nil
}

// Stats returns a point-in-time snapshot of the runtime's counters.
func (rt *Runtime) Stats() Stats {
	rt.reg.lock.EnterRead()

	ctrls := make([]*controller, len(rt.reg.entries))
	for i := range rt.reg.entries {
		ctrls[i] = rt.reg.entries[i].ctrl
	}

	rt.reg.lock.ExitRead()

	return rt.statsFor(ctrls)
}

func (rt *Runtime) statsFor(ctrls []*controller) Stats {
	s := Stats{
		Dispatched:            rt.counters.dispatched.Load(),
		Dropped:               rt.counters.dropped.Load(),
		CyclesCompleted:       rt.counters.cyclesCompleted.Load(),
		BatchesScheduled:      rt.counters.batchesScheduled.Load(),
		SuppressedDiagnostics: rt.diag.suppressed(),
	}

	s.AllocationFailures = rt.global.FailedAllocations()
	s.OutstandingPayloads = rt.global.OutstandingAllocations()
	s.OutstandingPayloadBytes = rt.global.OutstandingBytes()

	for _, c := range ctrls {
		s.AllocationFailures += c.manager.FailedAllocations()
		s.OutstandingPayloads += c.manager.OutstandingAllocations()
		s.OutstandingPayloadBytes += c.manager.OutstandingBytes()
	}

	return s
}
