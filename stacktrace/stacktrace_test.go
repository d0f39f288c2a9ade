package stacktrace

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCaptureAndResolve(t *testing.T) {
	r := NewRegistry()

	id := r.Capture(0)
	require.NotZero(t, id)
	assert.Equal(t, 1, r.Outstanding())

	trace := r.Resolve(id)
	assert.Contains(t, trace, "TestRegistryCaptureAndResolve")
	assert.Contains(t, trace, "stacktrace_test.go:")
}

func TestRegistryRelease(t *testing.T) {
	r := NewRegistry()

	id := r.Capture(0)
	require.NotZero(t, id)

	r.Release(id)

	assert.Empty(t, r.Resolve(id))
	assert.Zero(t, r.Outstanding())

	// Unknown and zero ids are ignored.
	r.Release(id)
	r.Release(0)
}

func TestRegistryZeroIDMeansNoStack(t *testing.T) {
	r := NewRegistry()

	assert.Empty(t, r.Resolve(0))
}

func TestRegistryIDsAreUnique(t *testing.T) {
	r := NewRegistry()

	seen := make(map[uint64]bool)

	for range 100 {
		id := r.Capture(0)
		require.False(t, seen[id], "ids must never repeat")

		seen[id] = true
	}

	assert.Equal(t, 100, r.Outstanding())
}

func TestRegistryConcurrentCaptureRelease(t *testing.T) {
	const goroutines = 8

	r := NewRegistry()

	var wg sync.WaitGroup

	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()

			for range 200 {
				id := r.Capture(0)
				if id != 0 {
					r.Release(id)
				}
			}
		}()
	}

	wg.Wait()

	assert.Zero(t, r.Outstanding())
}
