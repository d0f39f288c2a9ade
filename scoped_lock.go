package tidelog

import (
	"github.com/hyp3rd/ewrap"

	"github.com/tidelog/tidelog/dispatch"
	"github.com/tidelog/tidelog/internal/spinlock"
	"github.com/tidelog/tidelog/payload"
	"github.com/tidelog/tidelog/stacktrace"
)

// ScopedLock grants access to one logger's queue and payload manager. It
// is two-tier: the registry's shared lock keeps the logger from being
// removed underneath the holder, and the manager's shared access lock
// keeps payload memory from being torn down underneath the holder.
// Acquire through the runtime and release with Dispose.
type ScopedLock struct {
	rt     *Runtime
	ctrl   *controller
	handle LoggerHandle
	owns   bool
}

// acquireScopedLock locks handle's logger for the caller. The returned
// lock must be disposed.
func (rt *Runtime) acquireScopedLock(handle LoggerHandle) (*ScopedLock, error) {
	rt.reg.lock.EnterRead()

	ctrl := rt.reg.findLocked(handle)
	if ctrl == nil {
		rt.reg.lock.ExitRead()

		if spinlock.ChecksEnabled {
			panic("tidelog: scoped lock on removed or unknown logger")
		}

		return nil, ewrap.Wrapf(ErrLoggerNotFound, "logger handle %#x", uint64(handle))
	}

	ctrl.manager.LockRead()

	return &ScopedLock{rt: rt, ctrl: ctrl, handle: handle, owns: true}, nil
}

// borrowScopedLock wraps a controller whose registry and manager locks the
// caller already holds. Dispose is a no-op on the returned lock.
func (rt *Runtime) borrowScopedLock(ctrl *controller) *ScopedLock {
	return &ScopedLock{rt: rt, ctrl: ctrl, handle: ctrl.handle, owns: false}
}

// Handle returns the locked logger's handle.
func (l *ScopedLock) Handle() LoggerHandle {
	return l.handle
}

// Queue returns the locked logger's dispatch queue.
func (l *ScopedLock) Queue() *dispatch.Queue {
	return l.ctrl.queue
}

// Manager returns the locked logger's payload memory manager.
func (l *ScopedLock) Manager() *payload.Manager {
	return l.ctrl.manager
}

// Traces returns the runtime's stack trace registry, for sinks that
// resolve a record's StackTraceID while rendering.
func (l *ScopedLock) Traces() *stacktrace.Registry {
	return l.ctrl.traces
}

// Dispose releases the lock. Disposing twice is harmless.
func (l *ScopedLock) Dispose() {
	if l == nil || !l.owns {
		return
	}

	l.owns = false
	l.ctrl.manager.UnlockRead()
	l.rt.reg.lock.ExitRead()
}
