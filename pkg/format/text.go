package format

import (
	"bytes"
	"time"

	"github.com/tidelog/tidelog"
)

// DefaultTimeFormat renders wall-clock timestamps with millisecond
// precision, comma separated.
const DefaultTimeFormat = "2006-01-02 15:04:05,000"

// Level strings pad to five characters so messages align.
const levelPadding = 5

// TextFormatter renders records as human-readable lines:
//
//	2026-03-14 09:30:12,345 [ INFO] user logged in user=ada attempt=2
//
// Timestamps render in UTC. A captured stack trace follows the record on
// its own lines.
type TextFormatter struct {
	// TimeFormat overrides DefaultTimeFormat when non-empty.
	TimeFormat string
	// DisableTimestamp omits the leading timestamp.
	DisableTimestamp bool
	// Color wraps the level tag in ANSI color codes when enabled.
	Color ColorConfig
}

// NewTextFormatter returns a TextFormatter with the default time format and
// colors off.
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{TimeFormat: DefaultTimeFormat}
}

// Format renders rec into buf.
func (f *TextFormatter) Format(buf *bytes.Buffer, rec *Record) error {
	f.appendTimestamp(buf, rec.Timestamp)
	f.appendLevel(buf, rec.Level)

	buf.Write(rec.Message)

	for i := range rec.Fields {
		fld := &rec.Fields[i]

		buf.WriteByte(' ')
		buf.Write(fld.Key)
		buf.WriteByte('=')
		buf.Write(fld.Value)
	}

	buf.WriteByte('\n')

	if rec.Stack != "" {
		buf.WriteString(rec.Stack)
	}

	return nil
}

// EstimateSize reports a rendered-size hint for rec.
func (f *TextFormatter) EstimateSize(rec *Record) int {
	size := len(DefaultTimeFormat) + levelPadding + 4 + len(rec.Message) + 1

	for i := range rec.Fields {
		size += len(rec.Fields[i].Key) + len(rec.Fields[i].Value) + 2
	}

	return size + len(rec.Stack)
}

func (f *TextFormatter) appendTimestamp(buf *bytes.Buffer, ns int64) {
	if f.DisableTimestamp {
		return
	}

	layout := f.TimeFormat
	if layout == "" {
		layout = DefaultTimeFormat
	}

	buf.WriteString(time.Unix(0, ns).UTC().Format(layout))
	buf.WriteByte(' ')
}

func (f *TextFormatter) appendLevel(buf *bytes.Buffer, level tidelog.Level) {
	if f.Color.Enable {
		if seq, ok := f.Color.LevelColors[level]; ok && seq != "" {
			buf.WriteString(seq)
			appendPaddedLevel(buf, level.String())
			buf.WriteString(Reset)
			buf.WriteByte(' ')

			return
		}
	}

	appendPaddedLevel(buf, level.String())
	buf.WriteByte(' ')
}

func appendPaddedLevel(buf *bytes.Buffer, levelStr string) {
	buf.WriteByte('[')

	for range levelPadding - len(levelStr) {
		buf.WriteByte(' ')
	}

	buf.WriteString(levelStr)
	buf.WriteByte(']')
}
