package tidelog

import (
	"fmt"
	"os"
)

// TaskHandle represents one scheduled unit of pipeline work. Handles are
// the edges of the update pipeline's dependency graph: a task runs only
// after every handle it depends on has completed. A nil *TaskHandle is a
// valid dependency that is always complete.
type TaskHandle struct {
	done chan struct{}
}

func newTaskHandle() *TaskHandle {
	return &TaskHandle{done: make(chan struct{})}
}

//nolint:gochecknoglobals // a single pre-completed handle serves every caller.
var completedTask = func() *TaskHandle {
	t := newTaskHandle()
	close(t.done)

	return t
}()

// CompletedTask returns a handle that is already complete.
func CompletedTask() *TaskHandle {
	return completedTask
}

// Wait blocks until the task completes. It returns immediately for nil and
// already-completed handles.
func (t *TaskHandle) Wait() {
	if t == nil {
		return
	}

	<-t.done
}

// IsComplete reports whether the task has completed without blocking.
func (t *TaskHandle) IsComplete() bool {
	if t == nil {
		return true
	}

	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Schedule runs fn once every dependency has completed and returns the
// handle of the new task. The handle completes even if fn panics: the
// panic is reported to standard error instead of crashing the process, so
// a failing task can never wedge the tasks scheduled after it.
func Schedule(fn func(), deps ...*TaskHandle) *TaskHandle {
	t := newTaskHandle()

	go func() {
		for _, d := range deps {
			d.Wait()
		}

		defer close(t.done)

		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintf(os.Stderr, "tidelog: task panic: %v\n", r)
			}
		}()

		fn()
	}()

	return t
}

// Combine returns a handle that completes when every input handle has
// completed. With no inputs the result is immediately complete.
func Combine(handles ...*TaskHandle) *TaskHandle {
	if len(handles) == 0 {
		return CompletedTask()
	}

	return Schedule(func() {}, handles...)
}
