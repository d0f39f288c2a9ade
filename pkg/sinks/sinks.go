// Package sinks provides the built-in Sink implementations: memory,
// console, file, and nop. They share one render loop that reads a cycle's
// sorted records non-destructively, renders them through a
// format.Formatter, and hands each batch to a Writer.
package sinks

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/hyp3rd/ewrap"
	"github.com/mattn/go-isatty"

	"github.com/tidelog/tidelog"
	"github.com/tidelog/tidelog/pkg/format"
)

// Broadcast is the sink id of a sink that only renders untargeted records.
// Records whose SinkID is non-negative render solely on the sink whose id
// matches.
const Broadcast int32 = -1

// Writer is the destination contract shared by sinks.
type Writer interface {
	// Write writes the given bytes to the underlying output.
	Write(p []byte) (n int, err error)
	// Sync ensures that all data has been written.
	Sync() error
	// Close closes the writer and releases any resources.
	Close() error
}

type writerAdapter struct {
	writer io.Writer
}

// NewWriterAdapter wraps a basic io.Writer into a Writer.
func NewWriterAdapter(w io.Writer) Writer {
	return &writerAdapter{writer: w}
}

func (w *writerAdapter) Underlying() io.Writer {
	return w.writer
}

func (w *writerAdapter) Write(p []byte) (int, error) {
	n, err := w.writer.Write(p)
	if err != nil {
		return n, ewrap.Wrap(err, "failed to write to writer")
	}

	return n, nil
}

func (w *writerAdapter) Sync() error {
	if syncer, ok := w.writer.(interface{ Sync() error }); ok {
		return syncer.Sync()
	}

	return nil
}

func (w *writerAdapter) Close() error {
	if closer, ok := w.writer.(io.Closer); ok {
		err := closer.Close()
		if err != nil {
			return ewrap.Wrap(err, "failed to close writer")
		}
	}

	return nil
}

// IsTerminal reports whether w is connected to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// core drives the shared render loop. A sink that fails to emit is marked
// dead, reports one self-diagnostic, and is skipped on later cycles. The
// mutex serializes cycles when one sink serves several loggers.
type core struct {
	name      string
	id        int32
	formatter format.Formatter
	dest      Writer

	mu      sync.Mutex
	rec     format.Record
	scratch []byte
	out     bytes.Buffer

	dead atomic.Bool
	once sync.Once
}

func newCore(name string, id int32, f format.Formatter, dest Writer) core {
	return core{name: name, id: id, formatter: f, dest: dest}
}

// ScheduleUpdate schedules this sink's read of the current cycle after dep
// completes.
func (c *core) ScheduleUpdate(lock *tidelog.ScopedLock, dep *tidelog.TaskHandle) *tidelog.TaskHandle {
	return tidelog.Schedule(func() { c.readCycle(lock) }, dep)
}

func (c *core) readCycle(lock *tidelog.ScopedLock) {
	if c.dead.Load() {
		return
	}

	q := lock.Queue()

	records := q.BeginRead()
	defer q.EndRead()

	mgr := lock.Manager()
	res := lock.Traces()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.out.Reset()

	for i := range records {
		msg := &records[i]

		if msg.SinkID >= 0 && msg.SinkID != c.id {
			continue
		}

		if !mgr.Pin(msg.Payload) {
			continue
		}

		flat, ok := mgr.Flatten(c.scratch[:0], msg.Payload)

		mgr.Unpin(msg.Payload)

		if !ok {
			continue
		}

		c.scratch = flat

		if err := format.Decode(&c.rec, flat); err != nil {
			continue
		}

		c.rec.Timestamp = msg.Timestamp
		c.rec.Level = tidelog.Level(msg.Level)
		c.rec.Stack = ""

		if msg.StackTraceID != 0 {
			c.rec.Stack = res.Resolve(msg.StackTraceID)
		}

		c.out.Grow(c.formatter.EstimateSize(&c.rec))

		if err := c.formatter.Format(&c.out, &c.rec); err != nil {
			c.fail(err)

			return
		}
	}

	if c.out.Len() == 0 {
		return
	}

	if _, err := c.dest.Write(c.out.Bytes()); err != nil {
		c.fail(err)
	}
}

// Flush forces buffered output to its destination. A dead sink flushes
// nothing.
func (c *core) Flush() error {
	if c.dead.Load() {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.dest.Sync()
}

// Dispose releases the sink's writer. The sink renders nothing afterwards.
func (c *core) Dispose() error {
	c.dead.Store(true)

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.dest.Close()
}

func (c *core) fail(err error) {
	c.dead.Store(true)
	c.once.Do(func() {
		fmt.Fprintf(os.Stderr, "tidelog: sink %s disabled: %v\n", c.name, err)
	})
}
