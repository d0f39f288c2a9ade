// Package stacktrace captures call stacks into an id-keyed registry so a
// dispatch record can carry a fixed-size reference instead of the frames
// themselves. Stacks are captured at the logging call site, resolved lazily
// by formatters, and released by the pipeline's cleanup step together with
// the record's payload.
package stacktrace

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/tidelog/tidelog/internal/spinlock"
)

// maxDepth bounds the number of frames captured per stack.
const maxDepth = 64

// Registry stores captured stacks by id. The zero id means "no stack".
type Registry struct {
	mu     spinlock.SpinLock
	nextID uint64
	traces map[uint64][]uintptr
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{traces: make(map[uint64][]uintptr)}
}

// Capture records the current call stack and returns its id. skip counts
// additional frames to omit above the caller of Capture; 0 makes the caller
// the top frame. It returns 0 when nothing could be captured.
func (r *Registry) Capture(skip int) uint64 {
	var pcs [maxDepth]uintptr

	n := runtime.Callers(skip+2, pcs[:])
	if n == 0 {
		return 0
	}

	stack := make([]uintptr, n)
	copy(stack, pcs[:n])

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.traces[id] = stack
	r.mu.Unlock()

	return id
}

// Resolve formats the stack for id, one frame per line in the conventional
// "function\n\tfile:line" layout. It returns the empty string for the zero
// id or an id that was already released.
func (r *Registry) Resolve(id uint64) string {
	if id == 0 {
		return ""
	}

	r.mu.Lock()
	stack, ok := r.traces[id]
	r.mu.Unlock()

	if !ok {
		return ""
	}

	var b strings.Builder

	frames := runtime.CallersFrames(stack)

	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}

		if !more {
			break
		}
	}

	return b.String()
}

// Release drops the stack for id. The zero id and unknown ids are ignored.
func (r *Registry) Release(id uint64) {
	if id == 0 {
		return
	}

	r.mu.Lock()
	delete(r.traces, id)
	r.mu.Unlock()
}

// Outstanding returns the number of retained stacks, for leak reporting.
func (r *Registry) Outstanding() int {
	r.mu.Lock()
	n := len(r.traces)
	r.mu.Unlock()

	return n
}
