package spinlock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)

func TestSpinLockMutualExclusion(t *testing.T) {
	const (
		goroutines = 8
		increments = 2000
	)

	var (
		lock    SpinLock
		counter int
		wg      sync.WaitGroup
	)

	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()

			for range increments {
				lock.Lock()
				counter++
				lock.Unlock()
			}
		}()
	}

	wg.Wait()

	require.Equal(t, goroutines*increments, counter)
}

func TestSpinLockTryLock(t *testing.T) {
	var lock SpinLock

	require.True(t, lock.TryLock(), "first TryLock should succeed")
	require.False(t, lock.TryLock(), "second TryLock should fail while held")

	lock.Unlock()

	require.True(t, lock.TryLock(), "TryLock should succeed after Unlock")

	lock.Unlock()
}

func TestRWSpinLockConcurrentReaders(t *testing.T) {
	const readers = 16

	var (
		lock   RWSpinLock
		inside atomic.Int32
		wg     sync.WaitGroup
	)

	release := make(chan struct{})

	wg.Add(readers)

	for range readers {
		go func() {
			defer wg.Done()

			lock.EnterRead()
			inside.Add(1)
			<-release
			lock.ExitRead()
		}()
	}

	// Every reader must be able to hold the lock at the same time.
	require.Eventually(t, func() bool {
		return inside.Load() == readers
	}, waitFor, tick, "readers should overlap")

	close(release)
	wg.Wait()
}

func TestRWSpinLockExclusiveBlocksReaders(t *testing.T) {
	var lock RWSpinLock

	lock.EnterExclusive()

	require.False(t, lock.TryEnterRead(), "read acquisition must fail under exclusive hold")
	require.False(t, lock.TryEnterExclusive(), "second exclusive acquisition must fail")

	lock.ExitExclusive()

	require.True(t, lock.TryEnterRead(), "read acquisition should succeed after release")

	lock.ExitRead()
}

func TestRWSpinLockWriterWaitsForReaders(t *testing.T) {
	var (
		lock     RWSpinLock
		acquired atomic.Bool
	)

	lock.EnterRead()

	done := make(chan struct{})

	go func() {
		lock.EnterExclusive()
		acquired.Store(true)
		lock.ExitExclusive()
		close(done)
	}()

	// The writer claims the lock word first, which blocks out new readers,
	// but must not complete acquisition while a reader is registered.
	require.Eventually(t, func() bool {
		if lock.TryEnterRead() {
			lock.ExitRead()

			return false
		}

		return true
	}, waitFor, tick)
	require.False(t, acquired.Load(), "exclusive acquisition completed under an active reader")

	lock.ExitRead()

	<-done

	require.True(t, acquired.Load())
}

func TestRWSpinLockTryEnterExclusiveFailsUnderReader(t *testing.T) {
	var lock RWSpinLock

	lock.EnterRead()

	require.False(t, lock.TryEnterExclusive())

	lock.ExitRead()

	require.True(t, lock.TryEnterExclusive())

	lock.ExitExclusive()
}

func TestRWSpinLockCrossGoroutineRelease(t *testing.T) {
	var lock RWSpinLock

	lock.EnterRead()

	// Locks are not goroutine-affine: a hold taken here may be released
	// by a pipeline task running elsewhere.
	done := make(chan struct{})

	go func() {
		lock.ExitRead()
		close(done)
	}()

	<-done

	require.True(t, lock.TryEnterExclusive())

	lock.ExitExclusive()
}

func TestRWSpinLockStress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	const (
		writers    = 4
		readers    = 8
		iterations = 1000
	)

	var (
		lock   RWSpinLock
		shared [2]int64
		wg     sync.WaitGroup
	)

	wg.Add(writers + readers)

	for range writers {
		go func() {
			defer wg.Done()

			for range iterations {
				lock.EnterExclusive()
				shared[0]++
				shared[1]++
				lock.ExitExclusive()
			}
		}()
	}

	for range readers {
		go func() {
			defer wg.Done()

			for range iterations {
				lock.EnterRead()

				if shared[0] != shared[1] {
					panic("reader observed a torn write")
				}

				lock.ExitRead()
			}
		}()
	}

	wg.Wait()

	require.Equal(t, int64(writers*iterations), shared[0])
	require.Equal(t, shared[0], shared[1])
}
