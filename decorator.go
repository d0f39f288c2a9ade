package tidelog

import (
	"sync/atomic"

	"github.com/hyp3rd/ewrap"

	"github.com/tidelog/tidelog/internal/spinlock"
	"github.com/tidelog/tidelog/payload"
)

// Decoration accumulates the fields a function decorator adds to the
// record under construction.
type Decoration struct {
	fields []Field
}

// Add appends fields to the record under construction.
func (d *Decoration) Add(fields ...Field) {
	d.fields = append(d.fields, fields...)
}

// FunctionDecorator computes fields for every record at construction
// time. Implementations must be safe for concurrent calls.
type FunctionDecorator func(d *Decoration)

// DecoratorScope represents one registered decorator. Disposing it stops
// the decoration; constant payloads are handed back with a deferred
// release so records already carrying copies stay readable.
type DecoratorScope struct {
	rt       *Runtime
	id       uint64
	logger   LoggerHandle
	disposed atomic.Bool
}

// Dispose removes the decorator from its runtime. Disposing twice is
// harmless.
func (s *DecoratorScope) Dispose() {
	if s == nil || s.rt == nil || !s.disposed.CompareAndSwap(false, true) {
		return
	}

	s.rt.removeDecorator(s.id, s.logger)
}

type constantDecorator struct {
	id      uint64
	logger  LoggerHandle
	handles []payload.Handle
}

type functionDecorator struct {
	id     uint64
	logger LoggerHandle
	fn     FunctionDecorator
}

// decoratorTable holds a runtime's registered decorators. A spinlock
// guards it: message construction snapshots entries under the lock and
// copies payloads outside it.
type decoratorTable struct {
	mu        spinlock.SpinLock
	nextID    uint64
	constants []constantDecorator
	funcs     []functionDecorator
}

func (t *decoratorTable) addConstant(logger LoggerHandle, handles []payload.Handle) uint64 {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.constants = append(t.constants, constantDecorator{id: id, logger: logger, handles: handles})
	t.mu.Unlock()

	return id
}

func (t *decoratorTable) addFunction(logger LoggerHandle, fn FunctionDecorator) uint64 {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.funcs = append(t.funcs, functionDecorator{id: id, logger: logger, fn: fn})
	t.mu.Unlock()

	return id
}

// removeConstant detaches the constant decorator id and returns its
// payload handles for the caller to release.
func (t *decoratorTable) removeConstant(id uint64) ([]payload.Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.constants {
		if t.constants[i].id != id {
			continue
		}

		handles := t.constants[i].handles
		t.constants = append(t.constants[:i], t.constants[i+1:]...)

		return handles, true
	}

	return nil, false
}

func (t *decoratorTable) removeFunction(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.funcs {
		if t.funcs[i].id != id {
			continue
		}

		t.funcs = append(t.funcs[:i], t.funcs[i+1:]...)

		return true
	}

	return false
}

// drainAll empties the table and returns every remaining constant payload
// handle. Runtime shutdown calls it after per-logger disposal has stripped
// the scoped entries, so the result holds global handles only.
func (t *decoratorTable) drainAll() []payload.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var handles []payload.Handle
	for i := range t.constants {
		handles = append(handles, t.constants[i].handles...)
	}

	t.constants = nil
	t.funcs = nil

	return handles
}

// removeLoggerScoped detaches every decorator bound to logger and returns
// the constant payload handles for the caller to release in the logger's
// manager. Scopes for the detached decorators become inert.
func (t *decoratorTable) removeLoggerScoped(logger LoggerHandle) []payload.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var handles []payload.Handle

	kept := t.constants[:0]

	for _, cd := range t.constants {
		if cd.logger == logger {
			handles = append(handles, cd.handles...)

			continue
		}

		kept = append(kept, cd)
	}

	t.constants = kept

	keptFuncs := t.funcs[:0]

	for _, fd := range t.funcs {
		if fd.logger == logger {
			continue
		}

		keptFuncs = append(keptFuncs, fd)
	}

	t.funcs = keptFuncs

	return handles
}

// decorationsFor snapshots the decorators that apply to logger. Global
// entries come first in every slice, matching the order their payloads
// take in the record's handle list.
func (t *decoratorTable) decorationsFor(logger LoggerHandle) (fns []FunctionDecorator, global, scoped []payload.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.funcs {
		if t.funcs[i].logger == 0 {
			fns = append(fns, t.funcs[i].fn)
		}
	}

	for i := range t.funcs {
		if t.funcs[i].logger == logger {
			fns = append(fns, t.funcs[i].fn)
		}
	}

	for i := range t.constants {
		if t.constants[i].logger == 0 {
			global = append(global, t.constants[i].handles...)
		}
	}

	for i := range t.constants {
		if t.constants[i].logger == logger {
			scoped = append(scoped, t.constants[i].handles...)
		}
	}

	return fns, global, scoped
}

// AddConstantDecorator attaches constant fields to every record. A zero
// logger handle decorates all loggers; a valid handle decorates only that
// logger. The fields are encoded once, at registration.
func (rt *Runtime) AddConstantDecorator(logger LoggerHandle, fields ...Field) (*DecoratorScope, error) {
	if rt.down.Load() {
		return nil, ewrap.Wrap(ErrRuntimeShutdown, "add constant decorator")
	}

	if len(fields) == 0 {
		return &DecoratorScope{rt: rt}, nil
	}

	var (
		handles []payload.Handle
		err     error
	)

	if logger == 0 {
		handles, err = rt.allocateGlobalConstants(fields)
	} else {
		handles, err = rt.allocateScopedConstants(logger, fields)
	}

	if err != nil {
		return nil, err
	}

	id := rt.decorators.addConstant(logger, handles)

	return &DecoratorScope{rt: rt, id: id, logger: logger}, nil
}

// AddFunctionDecorator attaches a field-computing function to every
// record. A zero logger handle decorates all loggers.
func (rt *Runtime) AddFunctionDecorator(logger LoggerHandle, fn FunctionDecorator) (*DecoratorScope, error) {
	if rt.down.Load() {
		return nil, ewrap.Wrap(ErrRuntimeShutdown, "add function decorator")
	}

	if fn == nil {
		return &DecoratorScope{rt: rt}, nil
	}

	if logger != 0 {
		rt.reg.lock.EnterRead()
		ctrl := rt.reg.findLocked(logger)
		rt.reg.lock.ExitRead()

		if ctrl == nil {
			return nil, ewrap.Wrapf(ErrLoggerNotFound, "logger handle %#x", uint64(logger))
		}
	}

	id := rt.decorators.addFunction(logger, fn)

	return &DecoratorScope{rt: rt, id: id, logger: logger}, nil
}

// allocateGlobalConstants encodes one payload per field in the global
// manager.
func (rt *Runtime) allocateGlobalConstants(fields []Field) ([]payload.Handle, error) {
	rt.global.LockRead()
	defer rt.global.UnlockRead()

	handles := make([]payload.Handle, 0, len(fields))

	for _, f := range fields {
		h := rt.global.AllocateCopy(appendFieldChunk(nil, f))
		if !h.IsValid() {
			for _, made := range handles {
				rt.global.Release(made, false)
			}

			return nil, ewrap.Wrapf(ErrPayloadAllocation, "constant decorator field %q", f.Key)
		}

		handles = append(handles, h)
	}

	return handles, nil
}

// allocateScopedConstants encodes one payload per field in the logger's
// own manager.
func (rt *Runtime) allocateScopedConstants(logger LoggerHandle, fields []Field) ([]payload.Handle, error) {
	lk, err := rt.acquireScopedLock(logger)
	if err != nil {
		return nil, err
	}
	defer lk.Dispose()

	mgr := lk.Manager()
	handles := make([]payload.Handle, 0, len(fields))

	for _, f := range fields {
		h := mgr.AllocateCopy(appendFieldChunk(nil, f))
		if !h.IsValid() {
			for _, made := range handles {
				mgr.Release(made, false)
			}

			return nil, ewrap.Wrapf(ErrPayloadAllocation, "constant decorator field %q", f.Key)
		}

		handles = append(handles, h)
	}

	return handles, nil
}

// removeDecorator detaches a decorator and schedules its payloads for
// deferred release.
func (rt *Runtime) removeDecorator(id uint64, logger LoggerHandle) {
	if handles, ok := rt.decorators.removeConstant(id); ok {
		rt.releaseConstantHandles(logger, handles)

		return
	}

	rt.decorators.removeFunction(id)
}

func (rt *Runtime) releaseConstantHandles(logger LoggerHandle, handles []payload.Handle) {
	if len(handles) == 0 {
		return
	}

	if logger == 0 {
		rt.global.LockRead()
		for _, h := range handles {
			rt.global.ReleaseDeferred(h)
		}
		rt.global.UnlockRead()

		return
	}

	lk, err := rt.acquireScopedLock(logger)
	if err != nil {
		// Logger already removed; its manager shutdown reclaimed the
		// payloads.
		return
	}
	defer lk.Dispose()

	mgr := lk.Manager()
	for _, h := range handles {
		mgr.ReleaseDeferred(h)
	}
}
