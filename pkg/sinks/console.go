package sinks

import (
	"bufio"
	"io"
	"os"

	"github.com/hyp3rd/ewrap"

	"github.com/tidelog/tidelog"
	"github.com/tidelog/tidelog/pkg/format"
)

// consoleBufferSize batches a cycle's records into few terminal writes.
const consoleBufferSize = 8 * 1024

// ConsoleOptions configures a ConsoleSink.
type ConsoleOptions struct {
	// Writer is the output destination; nil selects os.Stdout.
	Writer io.Writer
	// Formatter renders records; nil selects the text formatter with the
	// default color palette.
	Formatter format.Formatter
	// ID is the sink's id for targeted records. The zero value accepts
	// broadcast records only.
	ID int32
}

// ConsoleSink renders records to a terminal or any io.Writer. Output is
// buffered and reaches the destination on Flush, which the batch scheduler
// invokes once per batch. ANSI colors apply only when the destination is a
// terminal, unless the formatter's palette forces them.
type ConsoleSink struct {
	core
}

var _ tidelog.Sink = (*ConsoleSink)(nil)

// NewConsoleSink creates a ConsoleSink.
func NewConsoleSink(opts ConsoleOptions) *ConsoleSink {
	out := opts.Writer
	if out == nil {
		out = os.Stdout
	}

	f := opts.Formatter
	if f == nil {
		tf := format.NewTextFormatter()
		tf.Color = format.DefaultColorConfig()
		f = tf
	}

	if tf, ok := f.(*format.TextFormatter); ok {
		f = gateColors(tf, out)
	}

	id := opts.ID
	if id == 0 {
		id = Broadcast
	}

	return &ConsoleSink{
		core: newCore("console", id, f, newConsoleWriter(out)),
	}
}

// gateColors returns tf with colors disabled when out is not a terminal
// and the palette does not force them.
func gateColors(tf *format.TextFormatter, out io.Writer) format.Formatter {
	if !tf.Color.Enable || tf.Color.ForceTTY || IsTerminal(out) {
		return tf
	}

	clone := *tf
	clone.Color.Enable = false

	return &clone
}

// consoleWriter buffers output so a cycle's records reach the terminal in
// few writes. Standard streams are flushed but never closed.
type consoleWriter struct {
	buf *bufio.Writer
	out io.Writer
}

func newConsoleWriter(out io.Writer) *consoleWriter {
	return &consoleWriter{
		buf: bufio.NewWriterSize(out, consoleBufferSize),
		out: out,
	}
}

func (w *consoleWriter) Write(p []byte) (int, error) {
	n, err := w.buf.Write(p)
	if err != nil {
		return n, ewrap.Wrap(err, "writing console output")
	}

	return n, nil
}

func (w *consoleWriter) Sync() error {
	err := w.buf.Flush()
	if err != nil {
		return ewrap.Wrap(err, "flushing console output")
	}

	return nil
}

func (w *consoleWriter) Close() error {
	err := w.Sync()
	if err != nil {
		return err
	}

	if f, ok := w.out.(*os.File); ok && isStandardStream(f) {
		return nil
	}

	if closer, ok := w.out.(io.Closer); ok {
		err := closer.Close()
		if err != nil {
			return ewrap.Wrap(err, "closing console output")
		}
	}

	return nil
}

func isStandardStream(f *os.File) bool {
	return f == os.Stdout || f == os.Stderr
}
