package payload

import (
	"sync/atomic"

	"github.com/tidelog/tidelog/internal/spinlock"
)

const (
	// DefaultBudget is the byte budget of a Manager when Options leaves it
	// unset.
	DefaultBudget int64 = 64 << 20
	// DefaultInitialSlots is the number of pre-created arena slots when
	// Options leaves it unset.
	DefaultInitialSlots = 64

	// Free slots keep their buffer for reuse; Update releases retained
	// buffers larger than this.
	retainedBufferCap = 64 << 10
)

// Options configures a Manager.
type Options struct {
	// Name tags the manager in leak reports and diagnostics.
	Name string
	// InitialSlots pre-creates arena slots.
	InitialSlots int
	// BudgetBytes caps the total bytes of live payloads. Allocations beyond
	// the budget fail with InvalidHandle; they never block.
	BudgetBytes int64
}

type slotState struct {
	data       []byte
	children   []Handle
	generation uint32
	pins       int32
	live       bool
}

// Manager owns an arena of payload buffers addressed by Handles.
//
// Structural state (slots, free list, deferral lists) is guarded by a
// spinlock held only for pointer-sized work. The separate read/write lock
// is the runtime's access protocol: callers composing or inspecting
// messages hold it shared for the duration of their work, and Shutdown
// takes it exclusively to fence out every reader before tearing down.
//
// All operations are non-blocking: failures surface as InvalidHandle or a
// false return, never as a panic on the hot path.
type Manager struct {
	name string

	access spinlock.RWSpinLock
	mu     spinlock.SpinLock

	slots    []slotState
	freeList []uint32

	// Deferred releases rotate through two epoch lists: handles deferred
	// during the current epoch are only released two Update calls later,
	// after every task that could still reference them has drained.
	deferredCurr []Handle
	deferredPrev []Handle

	budget int64

	liveCount atomic.Int64
	liveBytes atomic.Int64

	totalAllocations  atomic.Uint64
	failedAllocations atomic.Uint64
}

// NewManager creates a Manager with the given options.
func NewManager(opts Options) *Manager {
	if opts.InitialSlots <= 0 {
		opts.InitialSlots = DefaultInitialSlots
	}

	if opts.BudgetBytes <= 0 {
		opts.BudgetBytes = DefaultBudget
	}

	if opts.Name == "" {
		opts.Name = "payload"
	}

	m := &Manager{
		name:     opts.Name,
		slots:    make([]slotState, opts.InitialSlots),
		freeList: make([]uint32, opts.InitialSlots),
		budget:   opts.BudgetBytes,
	}

	for i := range m.slots {
		m.slots[i].generation = firstGeneration
		m.freeList[i] = uint32(opts.InitialSlots - 1 - i)
	}

	return m
}

// Name returns the manager's diagnostic name.
func (m *Manager) Name() string { return m.name }

// LockRead acquires the manager's access lock in shared mode. Callers hold
// it for the whole window in which they compose, inspect, or append
// messages tied to this manager.
func (m *Manager) LockRead() { m.access.EnterRead() }

// UnlockRead releases one shared hold of the access lock.
func (m *Manager) UnlockRead() { m.access.ExitRead() }

func (m *Manager) resolveLocked(h Handle) *slotState {
	idx := h.slot()
	if int(idx) >= len(m.slots) {
		return nil
	}

	s := &m.slots[idx]
	if !s.live || s.generation != h.generation() {
		return nil
	}

	return s
}

func (m *Manager) takeSlotLocked() uint32 {
	if n := len(m.freeList); n > 0 {
		idx := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]

		return idx
	}

	m.slots = append(m.slots, slotState{generation: firstGeneration})

	return uint32(len(m.slots) - 1)
}

// Allocate reserves a buffer of size bytes and returns its handle. The
// buffer contents are undefined until written. Allocate returns
// InvalidHandle when size is not positive or the manager's budget is
// exhausted; it never blocks.
func (m *Manager) Allocate(size int) Handle {
	if size <= 0 {
		m.failedAllocations.Add(1)

		return InvalidHandle
	}

	m.mu.Lock()

	if m.liveBytes.Load()+int64(size) > m.budget {
		m.mu.Unlock()
		m.failedAllocations.Add(1)

		return InvalidHandle
	}

	idx := m.takeSlotLocked()
	s := &m.slots[idx]

	if cap(s.data) >= size {
		s.data = s.data[:size]
	} else {
		s.data = make([]byte, size)
	}

	s.live = true
	s.pins = 0
	s.children = nil
	gen := s.generation

	m.liveCount.Add(1)
	m.liveBytes.Add(int64(size))
	m.totalAllocations.Add(1)
	m.mu.Unlock()

	return makeHandle(idx, gen)
}

// AllocateCopy reserves a buffer holding a copy of src.
func (m *Manager) AllocateCopy(src []byte) Handle {
	h := m.Allocate(len(src))
	if !h.IsValid() {
		return InvalidHandle
	}

	data, _ := m.Bytes(h)
	copy(data, src)

	return h
}

// Copy deep-copies the payload h owned by from into this manager and
// returns the new handle. Disjointed payloads are flattened by the copy.
// It is used to migrate constant decorations across managers so a record
// never aliases a buffer owned by another manager; from may also be this
// manager itself.
func (m *Manager) Copy(from *Manager, h Handle) Handle {
	if from == nil {
		return InvalidHandle
	}

	if !from.Pin(h) {
		return InvalidHandle
	}
	defer from.Unpin(h)

	buf, ok := from.Flatten(nil, h)
	if !ok {
		return InvalidHandle
	}

	return m.AllocateCopy(buf)
}

// BuildDisjointed produces one handle that logically concatenates the given
// payloads without copying their bytes. On success the result owns the
// inputs: releasing it releases them. On failure (any input invalid, or no
// inputs) the caller keeps ownership of every input; there is no rollback
// to perform.
func (m *Manager) BuildDisjointed(handles ...Handle) Handle {
	if len(handles) == 0 {
		m.failedAllocations.Add(1)

		return InvalidHandle
	}

	m.mu.Lock()

	for _, h := range handles {
		if m.resolveLocked(h) == nil {
			m.mu.Unlock()
			m.failedAllocations.Add(1)

			return InvalidHandle
		}
	}

	idx := m.takeSlotLocked()
	s := &m.slots[idx]

	s.live = true
	s.pins = 0
	s.data = s.data[:0]
	s.children = append([]Handle(nil), handles...)
	gen := s.generation

	m.liveCount.Add(1)
	m.totalAllocations.Add(1)
	m.mu.Unlock()

	return makeHandle(idx, gen)
}

// Release frees the payload h immediately. It returns false and keeps the
// buffer when the payload (or, for a disjointed payload, any of its
// children) is still pinned by a reader and force is false. Releasing a
// disjointed payload releases its children.
//
// force bypasses pin checks and is reserved for shutdown paths. Releasing a
// stale handle returns false; builds with the lockcheck tag panic on it.
func (m *Manager) Release(h Handle, force bool) bool {
	m.mu.Lock()

	if m.resolveLocked(h) == nil {
		m.mu.Unlock()

		if spinlock.ChecksEnabled {
			panic("payload: release of invalid or stale handle")
		}

		return false
	}

	ok := m.releaseLocked(h, force)
	m.mu.Unlock()

	return ok
}

func (m *Manager) releaseLocked(h Handle, force bool) bool {
	s := m.resolveLocked(h)
	if s == nil {
		return false
	}

	if s.pins > 0 && !force {
		return false
	}

	if s.children != nil {
		if !force && !m.childrenReleasableLocked(s.children) {
			return false
		}

		// Stale children are skipped on forced cascades.
		for _, c := range s.children {
			m.releaseLocked(c, force)
		}
	}

	m.liveBytes.Add(-int64(len(s.data)))
	m.liveCount.Add(-1)

	s.live = false
	s.pins = 0
	s.children = nil
	s.generation++

	if s.generation < firstGeneration {
		s.generation = firstGeneration
	}

	m.freeList = append(m.freeList, h.slot())

	return true
}

func (m *Manager) childrenReleasableLocked(children []Handle) bool {
	for _, c := range children {
		s := m.resolveLocked(c)
		if s == nil || s.pins > 0 {
			return false
		}

		if s.children != nil && !m.childrenReleasableLocked(s.children) {
			return false
		}
	}

	return true
}

// ReleaseDeferred schedules h for release at an epoch boundary instead of
// immediately. It is the correct release for any caller that cannot prove
// no queued task still references h within the current epoch.
func (m *Manager) ReleaseDeferred(h Handle) {
	m.mu.Lock()

	if m.resolveLocked(h) == nil {
		m.mu.Unlock()

		if spinlock.ChecksEnabled {
			panic("payload: deferred release of invalid or stale handle")
		}

		return
	}

	m.deferredCurr = append(m.deferredCurr, h)
	m.mu.Unlock()
}

// Update drains the previous epoch's deferred releases and rotates the
// deferral lists, then trims oversized retained buffers. A handle deferred
// during epoch N is released at the end of epoch N+1, after every task that
// could still reference it has drained. Still-pinned entries are retried
// next epoch.
//
// Update must only be called from the single pipeline step that owns the
// epoch boundary for this manager.
func (m *Manager) Update() {
	m.mu.Lock()

	toDrain := m.deferredPrev
	m.deferredPrev = m.deferredCurr
	// Reuse the drained list's backing array for the new current list.
	// Requeued entries overwrite only indices the loop has already passed.
	m.deferredCurr = toDrain[:0]

	for _, h := range toDrain {
		if !m.releaseLocked(h, false) {
			if m.resolveLocked(h) != nil {
				m.deferredCurr = append(m.deferredCurr, h)
			}
		}
	}

	for _, idx := range m.freeList {
		if cap(m.slots[idx].data) > retainedBufferCap {
			m.slots[idx].data = nil
		}
	}

	m.mu.Unlock()
}

// Pin marks h as in use by a reader, preventing unforced release until the
// matching Unpin. It returns false if h is stale.
func (m *Manager) Pin(h Handle) bool {
	m.mu.Lock()

	s := m.resolveLocked(h)
	if s == nil {
		m.mu.Unlock()

		return false
	}

	s.pins++
	m.mu.Unlock()

	return true
}

// Unpin removes one reader pin from h.
func (m *Manager) Unpin(h Handle) {
	m.mu.Lock()

	s := m.resolveLocked(h)
	if s != nil && s.pins > 0 {
		s.pins--
		m.mu.Unlock()

		return
	}

	m.mu.Unlock()

	if spinlock.ChecksEnabled {
		panic("payload: unpin without matching pin")
	}
}

// Bytes returns the buffer of a plain payload. The slice aliases arena
// memory: it is only stable while the caller holds a pin on h (or otherwise
// knows h cannot be released). Disjointed payloads have no contiguous
// bytes; use Flatten for those.
func (m *Manager) Bytes(h Handle) ([]byte, bool) {
	m.mu.Lock()

	s := m.resolveLocked(h)
	if s == nil || s.children != nil {
		m.mu.Unlock()

		return nil, false
	}

	data := s.data
	m.mu.Unlock()

	return data, true
}

// Flatten appends the bytes referenced by h to dst and returns the extended
// buffer. For a disjointed payload the result is the byte-for-byte
// concatenation of its children in build order.
func (m *Manager) Flatten(dst []byte, h Handle) ([]byte, bool) {
	m.mu.Lock()
	dst, ok := m.flattenLocked(dst, h)
	m.mu.Unlock()

	return dst, ok
}

func (m *Manager) flattenLocked(dst []byte, h Handle) ([]byte, bool) {
	s := m.resolveLocked(h)
	if s == nil {
		return dst, false
	}

	if s.children == nil {
		return append(dst, s.data...), true
	}

	for _, c := range s.children {
		var ok bool

		dst, ok = m.flattenLocked(dst, c)
		if !ok {
			return dst, false
		}
	}

	return dst, true
}

// IsValid reports whether h currently resolves in this manager.
func (m *Manager) IsValid(h Handle) bool {
	m.mu.Lock()
	ok := m.resolveLocked(h) != nil
	m.mu.Unlock()

	return ok
}

// LeakReport summarizes payloads still live when a Manager shuts down.
type LeakReport struct {
	// Name is the manager's diagnostic name.
	Name string
	// Allocations is the number of payloads never released.
	Allocations int
	// Bytes is the total buffer bytes those payloads held.
	Bytes int64
}

// Leaked reports whether the shutdown found live payloads.
func (r LeakReport) Leaked() bool { return r.Allocations > 0 }

// Shutdown force-releases everything the manager still holds and returns a
// report of payloads that were leaked by their owners. It takes the access
// lock exclusively, so it must not run while any caller still holds a read
// lock. The manager must not be used afterwards.
func (m *Manager) Shutdown() LeakReport {
	m.access.EnterExclusive()
	m.mu.Lock()

	// Pending deferred releases are owed, not leaked.
	for _, h := range m.deferredPrev {
		m.releaseLocked(h, true)
	}

	for _, h := range m.deferredCurr {
		m.releaseLocked(h, true)
	}

	m.deferredPrev = nil
	m.deferredCurr = nil

	rep := LeakReport{Name: m.name}

	for i := range m.slots {
		s := &m.slots[i]

		if s.live {
			rep.Allocations++
			rep.Bytes += int64(len(s.data))

			s.live = false
			s.children = nil
			s.pins = 0
		}

		s.data = nil
	}

	m.slots = nil
	m.freeList = nil
	m.liveCount.Store(0)
	m.liveBytes.Store(0)

	m.mu.Unlock()
	m.access.ExitExclusive()

	return rep
}

// OutstandingAllocations returns the number of live payloads.
func (m *Manager) OutstandingAllocations() int64 { return m.liveCount.Load() }

// OutstandingBytes returns the total buffer bytes of live payloads.
func (m *Manager) OutstandingBytes() int64 { return m.liveBytes.Load() }

// TotalAllocations returns the number of allocations performed over the
// manager's lifetime.
func (m *Manager) TotalAllocations() uint64 { return m.totalAllocations.Load() }

// FailedAllocations returns the number of allocation attempts that failed.
func (m *Manager) FailedAllocations() uint64 { return m.failedAllocations.Load() }
