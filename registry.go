package tidelog

import (
	"github.com/tidelog/tidelog/internal/spinlock"
)

// LoggerHandle identifies a logger within its runtime. The zero handle is
// never issued.
type LoggerHandle uint64

// IsValid reports whether the handle could have been issued by a runtime.
func (h LoggerHandle) IsValid() bool {
	return h != 0
}

type registryEntry struct {
	handle LoggerHandle
	ctrl   *controller
}

// registry is the runtime's table of live controllers. The lock arbitrates
// lookups (shared) against insertion and removal (exclusive); a scoped lock
// keeps the shared side held for its whole lifetime, so removal waits out
// every in-flight use of the logger it targets.
type registry struct {
	lock    spinlock.RWSpinLock
	entries []registryEntry
}

func (r *registry) add(handle LoggerHandle, ctrl *controller) {
	r.lock.EnterExclusive()
	r.entries = append(r.entries, registryEntry{handle: handle, ctrl: ctrl})
	r.lock.ExitExclusive()
}

// findLocked returns the controller for handle, or nil. Callers hold the
// lock in either mode.
func (r *registry) findLocked(handle LoggerHandle) *controller {
	for i := range r.entries {
		if r.entries[i].handle == handle {
			return r.entries[i].ctrl
		}
	}

	return nil
}

// removeLocked deletes handle's entry by swapping in the last element and
// returns its controller, or nil. Callers hold the lock exclusively.
func (r *registry) removeLocked(handle LoggerHandle) *controller {
	for i := range r.entries {
		if r.entries[i].handle != handle {
			continue
		}

		ctrl := r.entries[i].ctrl
		last := len(r.entries) - 1
		r.entries[i] = r.entries[last]
		r.entries[last] = registryEntry{}
		r.entries = r.entries[:last]

		return ctrl
	}

	return nil
}

func (r *registry) count() int {
	r.lock.EnterRead()
	n := len(r.entries)
	r.lock.ExitRead()

	return n
}
