package tidelog

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tidelog/tidelog/internal/constants"
)

// Stats is a snapshot of runtime health counters.
type Stats struct {
	// Dispatched counts records accepted into dispatch queues.
	Dispatched uint64
	// Dropped counts records discarded before reaching a queue.
	Dropped uint64
	// AllocationFailures counts payload allocations rejected by budget
	// or shutdown.
	AllocationFailures uint64
	// CyclesCompleted counts finished logger update cycles.
	CyclesCompleted uint64
	// BatchesScheduled counts process-wide update batches.
	BatchesScheduled uint64
	// OutstandingPayloads is the number of live payload allocations
	// across all managers.
	OutstandingPayloads int64
	// OutstandingPayloadBytes is the number of live payload bytes across
	// all managers.
	OutstandingPayloadBytes int64
	// SuppressedDiagnostics counts diagnostic lines dropped by the
	// runtime's rate limiter.
	SuppressedDiagnostics uint64
}

// StatsHandler receives a stats snapshot at the end of each update batch.
type StatsHandler func(context.Context, Stats)

//nolint:gochecknoglobals // stats handlers use a package-level registry shared by all runtimes.
var statsRegistryOnce = sync.OnceValue(func() *statsHandlerRegistry {
	return &statsHandlerRegistry{}
})

// RegisterStatsHandler adds a global handler invoked after each update
// batch.
func RegisterStatsHandler(handler StatsHandler) {
	if handler == nil {
		return
	}

	statsRegistryOnce().register(handler)
}

// ClearStatsHandlers removes all registered stats handlers.
func ClearStatsHandlers() {
	statsRegistryOnce().reset()
}

// emitStats notifies global handlers with the provided snapshot.
func emitStats(ctx context.Context, stats Stats) {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultTimeout)
	defer cancel()

	statsRegistryOnce().emit(ctx, stats)
}

type statsHandlerRegistry struct {
	mu       sync.RWMutex
	handlers []StatsHandler
}

func (r *statsHandlerRegistry) register(handler StatsHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = append(r.handlers, handler)
}

func (r *statsHandlerRegistry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = nil
}

func (r *statsHandlerRegistry) emit(ctx context.Context, stats Stats) {
	handlers := r.snapshot()
	for _, handler := range handlers {
		handler(ctx, stats)
	}
}

func (r *statsHandlerRegistry) snapshot() []StatsHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.handlers) == 0 {
		return nil
	}

	clone := make([]StatsHandler, len(r.handlers))
	copy(clone, r.handlers)

	return clone
}

// statsCounters aggregates event counters across a runtime's loggers.
// Allocation failures are counted by the payload managers themselves.
type statsCounters struct {
	dispatched       atomic.Uint64
	dropped          atomic.Uint64
	cyclesCompleted  atomic.Uint64
	batchesScheduled atomic.Uint64
}
