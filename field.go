package tidelog

import (
	"strconv"
	"time"

	"github.com/spf13/cast"

	"github.com/tidelog/tidelog/payload"
)

// Field represents a key-value pair in structured logging.
type Field struct {
	Key   string
	Value any
}

// Str creates a Field with a string value.
func Str(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a Field with a boolean value.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Int creates a Field with an int value.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates a Field with an int64 value.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Uint64 creates a Field with an uint64 value.
func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a Field with a float64 value.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a Field with a time.Duration value.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Time creates a Field with a time.Time value.
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value}
}

// Error creates a Field from an error. Nil errors render as an empty value.
func Error(key string, err error) Field {
	var val any
	if err != nil {
		val = err
	}

	return Field{Key: key, Value: val}
}

// Any creates a Field with an arbitrary value.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// appendFieldChunk encodes one field into dst as a payload chunk. Values are
// stored in textual form together with a kind tag so structured formatters
// can render numerics and booleans unquoted.
func appendFieldChunk(dst []byte, f Field) []byte {
	var (
		kind payload.ValueKind
		text string
	)

	switch v := f.Value.(type) {
	case string:
		kind, text = payload.ValueString, v
	case bool:
		kind, text = payload.ValueBool, strconv.FormatBool(v)
	case int:
		kind, text = payload.ValueInt, strconv.FormatInt(int64(v), 10)
	case int8:
		kind, text = payload.ValueInt, strconv.FormatInt(int64(v), 10)
	case int16:
		kind, text = payload.ValueInt, strconv.FormatInt(int64(v), 10)
	case int32:
		kind, text = payload.ValueInt, strconv.FormatInt(int64(v), 10)
	case int64:
		kind, text = payload.ValueInt, strconv.FormatInt(v, 10)
	case uint:
		kind, text = payload.ValueUint, strconv.FormatUint(uint64(v), 10)
	case uint8:
		kind, text = payload.ValueUint, strconv.FormatUint(uint64(v), 10)
	case uint16:
		kind, text = payload.ValueUint, strconv.FormatUint(uint64(v), 10)
	case uint32:
		kind, text = payload.ValueUint, strconv.FormatUint(uint64(v), 10)
	case uint64:
		kind, text = payload.ValueUint, strconv.FormatUint(v, 10)
	case float32:
		kind, text = payload.ValueFloat, strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		kind, text = payload.ValueFloat, strconv.FormatFloat(v, 'g', -1, 64)
	case time.Duration:
		kind, text = payload.ValueString, v.String()
	case time.Time:
		kind, text = payload.ValueString, v.Format(time.RFC3339Nano)
	case error:
		kind, text = payload.ValueString, v.Error()
	case nil:
		kind, text = payload.ValueString, ""
	default:
		kind, text = payload.ValueString, cast.ToString(v)
	}

	return payload.AppendField(dst, kind, f.Key, []byte(text))
}
