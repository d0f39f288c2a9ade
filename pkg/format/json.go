package format

import (
	"bytes"
	"fmt"
	"time"

	"github.com/tidelog/tidelog/payload"
)

// JSONFormatter renders records as single-line JSON objects with manual
// escaping on the hot path:
//
//	{"timestamp":"2026-03-14T09:30:12.345Z","level":"INFO","message":"hit","user":"ada"}
//
// Numeric and boolean field kinds pass through unquoted; everything else
// renders as a JSON string. A captured stack trace lands in "stacktrace".
type JSONFormatter struct {
	// TimeFormat overrides time.RFC3339Nano when non-empty.
	TimeFormat string
	// DisableTimestamp omits the timestamp member.
	DisableTimestamp bool
}

// NewJSONFormatter returns a JSONFormatter with RFC3339Nano timestamps.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format renders rec into buf.
func (f *JSONFormatter) Format(buf *bytes.Buffer, rec *Record) error {
	buf.WriteByte('{')

	if !f.DisableTimestamp {
		layout := f.TimeFormat
		if layout == "" {
			layout = time.RFC3339Nano
		}

		buf.WriteString(`"timestamp":"`)
		buf.WriteString(time.Unix(0, rec.Timestamp).UTC().Format(layout))
		buf.WriteString(`",`)
	}

	buf.WriteString(`"level":"`)
	buf.WriteString(rec.Level.String())
	buf.WriteString(`","message":`)
	escapeJSON(buf, rec.Message)

	for i := range rec.Fields {
		fld := &rec.Fields[i]

		buf.WriteByte(',')
		escapeJSON(buf, fld.Key)
		buf.WriteByte(':')
		writeJSONValue(buf, fld)
	}

	if rec.Stack != "" {
		buf.WriteString(`,"stacktrace":`)
		escapeJSON(buf, []byte(rec.Stack))
	}

	buf.WriteString("}\n")

	return nil
}

// EstimateSize reports a rendered-size hint for rec.
func (f *JSONFormatter) EstimateSize(rec *Record) int {
	// 96 covers the braces, timestamp, level, and message members at the
	// widest timestamp layout.
	size := 96 + len(rec.Message)

	for i := range rec.Fields {
		size += len(rec.Fields[i].Key) + len(rec.Fields[i].Value) + 6
	}

	return size + len(rec.Stack)
}

// writeJSONValue emits a field's textual value with the quoting its kind
// calls for.
func writeJSONValue(buf *bytes.Buffer, fld *Field) {
	switch fld.Kind {
	case payload.ValueInt, payload.ValueUint, payload.ValueFloat, payload.ValueBool:
		if len(fld.Value) == 0 {
			buf.WriteString("null")

			return
		}

		buf.Write(fld.Value)
	default:
		escapeJSON(buf, fld.Value)
	}
}

// escapeJSON writes s as a JSON string. Bytes above the control range pass
// through untouched, so multi-byte runes survive.
func escapeJSON(buf *bytes.Buffer, s []byte) {
	buf.WriteByte('"')

	start := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}

		if start < i {
			buf.Write(s[start:i])
		}

		writeEscapedByte(buf, c)

		start = i + 1
	}

	if start < len(s) {
		buf.Write(s[start:])
	}

	buf.WriteByte('"')
}

func writeEscapedByte(buf *bytes.Buffer, c byte) {
	switch c {
	case '"':
		buf.WriteString(`\"`)
	case '\\':
		buf.WriteString(`\\`)
	case '\b':
		buf.WriteString(`\b`)
	case '\f':
		buf.WriteString(`\f`)
	case '\n':
		buf.WriteString(`\n`)
	case '\r':
		buf.WriteString(`\r`)
	case '\t':
		buf.WriteString(`\t`)
	default:
		fmt.Fprintf(buf, `\u%04x`, c)
	}
}
