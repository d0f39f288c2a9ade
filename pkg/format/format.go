// Package format renders drained dispatch records to text. A Formatter
// consumes a decoded Record view; Render bridges from a raw queue message
// by flattening the payload out of its manager, decoding the chunk stream,
// and resolving the stack trace. Sinks that manage their own scratch
// buffers call Decode and Format directly.
package format

import (
	"bytes"

	"github.com/hyp3rd/ewrap"

	"github.com/tidelog/tidelog"
	"github.com/tidelog/tidelog/dispatch"
	"github.com/tidelog/tidelog/payload"
)

// ErrUnreadablePayload is returned when a record's payload cannot be
// pinned or flattened out of its manager.
var ErrUnreadablePayload = ewrap.New("record payload is unreadable")

// Field is one decoded key/value pair. Key and Value alias the decoded
// buffer and are only valid for the duration of a Format call.
type Field struct {
	Kind  payload.ValueKind
	Key   []byte
	Value []byte
}

// Record is the decoded view of one dispatch-queue message.
type Record struct {
	// Timestamp is the record's clock reading in nanoseconds.
	Timestamp int64
	// Level is the record's severity.
	Level tidelog.Level
	// Message is the record's message text.
	Message []byte
	// Fields holds the record's structured fields in append order.
	Fields []Field
	// Stack is the resolved stack trace, empty when none was captured.
	Stack string
}

// Formatter renders one record into buf, terminated by a newline.
// Implementations must be safe for concurrent use.
type Formatter interface {
	Format(buf *bytes.Buffer, rec *Record) error
	// EstimateSize reports a size hint for the rendered record so callers
	// can grow buffers ahead of Format.
	EstimateSize(rec *Record) int
}

// Resolver turns a stack trace id into rendered frames. The runtime's
// stack trace registry satisfies it.
type Resolver interface {
	Resolve(id uint64) string
}

// Decode parses flat's chunk stream into rec, reusing rec's field slice.
// The decoded message and field slices alias flat. Timestamp, Level, and
// Stack are left untouched.
func Decode(rec *Record, flat []byte) error {
	rec.Message = nil
	rec.Fields = rec.Fields[:0]

	for len(flat) > 0 {
		chunk, rest, err := payload.NextChunk(flat)
		if err != nil {
			return ewrap.Wrap(err, "decode record")
		}

		switch chunk.Kind {
		case payload.ChunkMessage:
			rec.Message = chunk.Data
		case payload.ChunkField:
			rec.Fields = append(rec.Fields, Field{Kind: chunk.Value, Key: chunk.Key, Value: chunk.Data})
		}

		flat = rest
	}

	return nil
}

// Render flattens msg's payload out of mgr, decodes it, resolves its stack
// trace through res when present, and formats the record into buf. res may
// be nil.
func Render(buf *bytes.Buffer, f Formatter, mgr *payload.Manager, msg dispatch.Message, res Resolver) error {
	if !mgr.Pin(msg.Payload) {
		return ewrap.Wrapf(ErrUnreadablePayload, "payload %#x", uint64(msg.Payload))
	}

	flat, ok := mgr.Flatten(nil, msg.Payload)

	mgr.Unpin(msg.Payload)

	if !ok {
		return ewrap.Wrapf(ErrUnreadablePayload, "payload %#x", uint64(msg.Payload))
	}

	var rec Record

	if err := Decode(&rec, flat); err != nil {
		return err
	}

	rec.Timestamp = msg.Timestamp
	rec.Level = tidelog.Level(msg.Level)

	if msg.StackTraceID != 0 && res != nil {
		rec.Stack = res.Resolve(msg.StackTraceID)
	}

	return f.Format(buf, &rec)
}
