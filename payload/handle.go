// Package payload implements the handle-based buffer allocator backing the
// logging runtime. A Manager owns an arena of reusable byte buffers; callers
// hold opaque Handles instead of pointers, so a released buffer can be
// recycled without leaving dangling references. Each slot carries a
// generation counter: using a stale handle is a detectable failure, never a
// read through freed memory.
//
// One Manager exists per logger, plus one process-wide instance for
// decorations that are not bound to any logger.
package payload

// Handle identifies a buffer owned by a Manager. The high 32 bits carry the
// slot generation, the low 32 bits the slot index. Handles are cheap values:
// copy them freely, but only the Manager that issued a Handle can resolve it.
//
// The zero Handle is invalid.
type Handle uint64

// InvalidHandle is returned by allocation operations that fail.
const InvalidHandle Handle = 0

const firstGeneration uint32 = 1

func makeHandle(slot, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(slot))
}

func (h Handle) slot() uint32 { return uint32(h) }

func (h Handle) generation() uint32 { return uint32(h >> 32) }

// IsValid reports whether h is structurally valid. A structurally valid
// handle may still be stale; Manager operations verify the generation.
func (h Handle) IsValid() bool {
	return h.generation() >= firstGeneration
}
