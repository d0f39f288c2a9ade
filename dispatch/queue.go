// Package dispatch implements the double-buffered record queue that sits
// between logging call sites and a logger's update pipeline. Appends from
// any goroutine go to the writable buffer while the frozen buffer is
// sorted, read by sinks, and finally drained and recycled by the cleanup
// step of the owning pipeline.
package dispatch

import (
	"cmp"
	"slices"
	"sync/atomic"

	"github.com/tidelog/tidelog/internal/spinlock"
	"github.com/tidelog/tidelog/payload"
)

// DefaultCapacity is the initial per-buffer record capacity of a Queue.
const DefaultCapacity = 1024

// AllSinks is the Message SinkID that targets every sink of the owning
// logger.
const AllSinks int32 = -1

// Message is one dispatch-queue record. Messages are immutable once
// appended; only the cleanup step of the owning pipeline destroys them.
type Message struct {
	// Payload references the record's bytes in the owning logger's
	// payload manager.
	Payload payload.Handle
	// Timestamp orders records; nanoseconds from the runtime's clock.
	Timestamp int64
	// StackTraceID references a captured stack trace, zero for none.
	StackTraceID uint64
	// SinkID targets one sink by index; negative means every sink.
	SinkID int32
	// Level is the record's severity code. Interpretation belongs to the
	// runtime; the queue only carries it.
	Level uint8
}

// Queue is a double-buffered, append-only record sequence.
//
// One buffer is writable and accumulates appends; the other is frozen and
// is the current drain target. Each pipeline cycle sorts the frozen buffer,
// lets sinks read it concurrently, then performs one exclusive read that
// releases every record and flips: the drained buffer comes back empty and
// writable, and the buffer that was accumulating freezes as the next
// cycle's drain target. A record appended during one epoch is therefore
// delivered by the cycle after the next flip.
//
// Appends hold the queue lock shared and reserve slots with an atomic
// cursor, so any number of goroutines may append concurrently; sort, flip,
// and buffer growth hold it exclusively.
type Queue struct {
	lock spinlock.RWSpinLock

	bufs [2][]Message

	// writeIdx selects the writable buffer; flipped under the exclusive
	// lock. epoch invalidates slot reservations that straddle a flip.
	writeIdx int
	epoch    uint64
	readLen  int

	cursor atomic.Int64
}

// NewQueue creates a queue with the given initial per-buffer capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	q := &Queue{}
	q.bufs[0] = make([]Message, capacity)
	q.bufs[1] = make([]Message, capacity)

	return q
}

// Append adds msg to the writable buffer. It never fails: when the buffer
// is full it grows under the exclusive lock and retries, trading memory for
// losslessness. A reservation that straddles a flip is abandoned and
// retaken in the new epoch.
func (q *Queue) Append(msg Message) {
	idx := int64(-1)

	var held uint64

	for {
		q.lock.EnterRead()

		epoch := q.epoch
		if idx < 0 || held != epoch {
			idx = q.cursor.Add(1) - 1
			held = epoch
		}

		buf := q.bufs[q.writeIdx]
		if idx < int64(len(buf)) {
			buf[idx] = msg
			q.lock.ExitRead()

			return
		}

		q.lock.ExitRead()
		q.growTo(idx+1, epoch)
	}
}

func (q *Queue) growTo(minLen int64, epoch uint64) {
	q.lock.EnterExclusive()

	// A flip since the reservation makes the growth request stale.
	if q.epoch == epoch {
		buf := q.bufs[q.writeIdx]
		if int64(len(buf)) < minLen {
			newCap := 2 * len(buf)
			if int64(newCap) < minLen {
				newCap = int(minLen)
			}

			grown := make([]Message, newCap)
			copy(grown, buf)
			q.bufs[q.writeIdx] = grown
		}
	}

	q.lock.ExitExclusive()
}

// Sort stably orders the drain-target buffer by timestamp. It runs before
// any read of the same cycle, so sinks observe total temporal order even
// though arrival order across goroutines was arbitrary.
func (q *Queue) Sort() {
	q.lock.EnterExclusive()

	view := q.bufs[1-q.writeIdx][:q.readLen]
	slices.SortStableFunc(view, func(a, b Message) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})

	q.lock.ExitExclusive()
}

// BeginRead opens a non-destructive view of the drain-target buffer. Any
// number of readers may hold concurrent views. Each BeginRead must be
// paired with EndRead; the view is invalid afterwards.
func (q *Queue) BeginRead() []Message {
	q.lock.EnterRead()

	return q.bufs[1-q.writeIdx][:q.readLen]
}

// EndRead closes a view opened by BeginRead.
func (q *Queue) EndRead() {
	q.lock.ExitRead()
}

// BeginReadExclusive opens the single destructive view of the drain-target
// buffer, used exactly once per cycle by the cleanup step. It must be paired
// with EndReadExclusiveAndFlip.
func (q *Queue) BeginReadExclusive() []Message {
	q.lock.EnterExclusive()

	return q.bufs[1-q.writeIdx][:q.readLen]
}

// EndReadExclusiveAndFlip clears the drained buffer and swaps buffer roles:
// the drained buffer becomes empty and writable, and the buffer that was
// accumulating appends freezes as the next cycle's drain target.
func (q *Queue) EndReadExclusiveAndFlip() {
	oldWrite := q.writeIdx

	n := q.cursor.Load()
	if n > int64(len(q.bufs[oldWrite])) {
		// Reservations beyond capacity never wrote; their appenders retry
		// in the new epoch.
		n = int64(len(q.bufs[oldWrite]))
	}

	q.readLen = int(n)
	q.writeIdx = 1 - oldWrite
	q.cursor.Store(0)
	q.epoch++

	q.lock.ExitExclusive()
}

// PendingWrites returns the number of records accumulated in the writable
// buffer. The value is advisory: concurrent appenders may move it.
func (q *Queue) PendingWrites() int {
	q.lock.EnterRead()

	n := q.cursor.Load()
	if limit := int64(len(q.bufs[q.writeIdx])); n > limit {
		n = limit
	}

	q.lock.ExitRead()

	return int(n)
}

// PendingReads returns the number of records in the drain-target buffer.
func (q *Queue) PendingReads() int {
	q.lock.EnterRead()
	n := q.readLen
	q.lock.ExitRead()

	return n
}

// Empty reports whether both buffers hold no records. Only meaningful while
// no appender is active.
func (q *Queue) Empty() bool {
	return q.PendingWrites() == 0 && q.PendingReads() == 0
}
