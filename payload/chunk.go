package payload

import (
	"encoding/binary"
	"math"

	"github.com/hyp3rd/ewrap"
)

// Payload buffers carry self-delimiting chunks so that a flattened
// disjointed payload remains parseable: formatters walk the chunk stream
// without knowing how many buffers it was assembled from.
//
// Wire layout (little endian):
//
//	message chunk: 0x01 | u32 length | bytes
//	field chunk:   0x02 | u8 value kind | u16 key length | key | u32 value length | value
type ChunkKind uint8

const (
	// ChunkMessage is the rendered message text of a record.
	ChunkMessage ChunkKind = 0x01
	// ChunkField is one structured key/value pair.
	ChunkField ChunkKind = 0x02
)

// ValueKind describes how a field chunk's value bytes should be rendered.
// Values are always stored in their textual form; the kind tells structured
// formatters which values may be emitted unquoted.
type ValueKind uint8

const (
	// ValueString renders quoted.
	ValueString ValueKind = iota + 1
	// ValueInt renders as a signed integer literal.
	ValueInt
	// ValueUint renders as an unsigned integer literal.
	ValueUint
	// ValueFloat renders as a floating point literal.
	ValueFloat
	// ValueBool renders as true or false.
	ValueBool
)

// ErrMalformedChunk is returned when a payload's chunk stream is truncated
// or carries an unknown tag.
var ErrMalformedChunk = ewrap.New("malformed payload chunk")

const maxChunkKeyLen = math.MaxUint16

// AppendMessage appends a message chunk holding msg to dst and returns the
// extended buffer.
func AppendMessage(dst []byte, msg []byte) []byte {
	dst = append(dst, byte(ChunkMessage))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(msg)))

	return append(dst, msg...)
}

// AppendField appends a field chunk to dst and returns the extended buffer.
// Keys longer than 64 KiB are truncated.
func AppendField(dst []byte, kind ValueKind, key string, value []byte) []byte {
	if len(key) > maxChunkKeyLen {
		key = key[:maxChunkKeyLen]
	}

	dst = append(dst, byte(ChunkField), byte(kind))
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(key)))
	dst = append(dst, key...)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(value)))

	return append(dst, value...)
}

// Chunk is one decoded element of a payload's chunk stream. Key and Value
// alias the decoded buffer and are only valid while the buffer is.
type Chunk struct {
	Kind  ChunkKind
	Value ValueKind
	Key   []byte
	Data  []byte
}

// NextChunk decodes the first chunk of buf and returns it together with the
// remaining bytes. It returns ErrMalformedChunk when buf does not start with
// a complete chunk.
func NextChunk(buf []byte) (Chunk, []byte, error) {
	if len(buf) == 0 {
		return Chunk{}, nil, ewrap.Wrap(ErrMalformedChunk, "empty buffer")
	}

	switch ChunkKind(buf[0]) {
	case ChunkMessage:
		if len(buf) < 5 {
			return Chunk{}, nil, ewrap.Wrap(ErrMalformedChunk, "truncated message header")
		}

		n := binary.LittleEndian.Uint32(buf[1:5])
		if uint32(len(buf)-5) < n {
			return Chunk{}, nil, ewrap.Wrap(ErrMalformedChunk, "truncated message body")
		}

		return Chunk{Kind: ChunkMessage, Data: buf[5 : 5+n]}, buf[5+n:], nil

	case ChunkField:
		if len(buf) < 4 {
			return Chunk{}, nil, ewrap.Wrap(ErrMalformedChunk, "truncated field header")
		}

		kind := ValueKind(buf[1])
		keyLen := int(binary.LittleEndian.Uint16(buf[2:4]))
		rest := buf[4:]

		if len(rest) < keyLen+4 {
			return Chunk{}, nil, ewrap.Wrap(ErrMalformedChunk, "truncated field key")
		}

		key := rest[:keyLen]
		valLen := binary.LittleEndian.Uint32(rest[keyLen : keyLen+4])
		rest = rest[keyLen+4:]

		if uint32(len(rest)) < valLen {
			return Chunk{}, nil, ewrap.Wrap(ErrMalformedChunk, "truncated field value")
		}

		return Chunk{Kind: ChunkField, Value: kind, Key: key, Data: rest[:valLen]}, rest[valLen:], nil

	default:
		return Chunk{}, nil, ewrap.Wrapf(ErrMalformedChunk, "unknown chunk tag %#x", buf[0])
	}
}
