// Package spinlock provides busy-wait synchronization primitives for the
// short critical sections of the logging runtime. The hot paths protect a
// handful of pointer updates, so parking a goroutine on an OS mutex costs
// more than the wait itself; these locks spin with a cooperative yield
// instead and may be acquired in one goroutine and released in another,
// which scheduled pipeline tasks rely on.
package spinlock

import (
	"runtime"
	"sync/atomic"
)

const (
	unlocked uint32 = 0
	locked   uint32 = 1

	// activeSpins bounds the busy-wait burst before the goroutine yields
	// its slice back to the scheduler.
	activeSpins = 64
)

// SpinLock is a mutual-exclusion lock built on a single CAS word.
// The zero value is an unlocked lock. It must not be copied after first use.
type SpinLock struct {
	word atomic.Uint32
}

// Lock acquires the lock, spinning until it is available.
func (l *SpinLock) Lock() {
	spins := 0

	for !l.word.CompareAndSwap(unlocked, locked) {
		spins++
		if spins >= activeSpins {
			runtime.Gosched()

			spins = 0
		}
	}
}

// TryLock attempts to acquire the lock without waiting.
// It returns true if the lock was acquired.
func (l *SpinLock) TryLock() bool {
	return l.word.CompareAndSwap(unlocked, locked)
}

// Unlock releases the lock. Releasing a lock that is not held is a
// protocol violation; builds with the lockcheck tag panic on it.
func (l *SpinLock) Unlock() {
	if ChecksEnabled && l.word.Load() != locked {
		panic("spinlock: unlock of unlocked SpinLock")
	}

	l.word.Store(unlocked)
}

// RWSpinLock is a reader/writer lock built on a lock word and a reader
// counter. Any number of readers may hold it concurrently; an exclusive
// holder excludes both readers and other exclusive holders. Writers take
// priority: once an exclusive acquisition begins, arriving readers back
// out and wait. The zero value is an unlocked lock.
type RWSpinLock struct {
	word    atomic.Uint32
	readers atomic.Int32
}

// EnterRead acquires the lock in shared mode.
//
// The reader optimistically registers itself, then re-checks the lock
// word: if an exclusive holder appeared, the reader deregisters and
// spins until the holder is gone before retrying.
func (l *RWSpinLock) EnterRead() {
	spins := 0

	for {
		l.readers.Add(1)

		if l.word.Load() == unlocked {
			return
		}

		l.readers.Add(-1)

		for l.word.Load() != unlocked {
			spins++
			if spins >= activeSpins {
				runtime.Gosched()

				spins = 0
			}
		}
	}
}

// ExitRead releases one shared hold.
func (l *RWSpinLock) ExitRead() {
	n := l.readers.Add(-1)

	if ChecksEnabled && n < 0 {
		panic("spinlock: ExitRead without matching EnterRead")
	}
}

// TryEnterRead attempts a shared acquisition without waiting.
func (l *RWSpinLock) TryEnterRead() bool {
	l.readers.Add(1)

	if l.word.Load() == unlocked {
		return true
	}

	l.readers.Add(-1)

	return false
}

// EnterExclusive acquires the lock exclusively: it claims the lock word,
// blocking out new readers, then waits for registered readers to drain.
func (l *RWSpinLock) EnterExclusive() {
	spins := 0

	for !l.word.CompareAndSwap(unlocked, locked) {
		spins++
		if spins >= activeSpins {
			runtime.Gosched()

			spins = 0
		}
	}

	for l.readers.Load() != 0 {
		spins++
		if spins >= activeSpins {
			runtime.Gosched()

			spins = 0
		}
	}
}

// TryEnterExclusive attempts an exclusive acquisition without waiting.
// It fails fast when another holder or any reader is present.
func (l *RWSpinLock) TryEnterExclusive() bool {
	if !l.word.CompareAndSwap(unlocked, locked) {
		return false
	}

	if l.readers.Load() != 0 {
		l.word.Store(unlocked)

		return false
	}

	return true
}

// ExitExclusive releases an exclusive hold.
func (l *RWSpinLock) ExitExclusive() {
	if ChecksEnabled && l.word.Load() != locked {
		panic("spinlock: ExitExclusive without exclusive hold")
	}

	l.word.Store(unlocked)
}
