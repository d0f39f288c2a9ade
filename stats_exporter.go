package tidelog

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
)

// StatsExporter exposes runtime stats via a Prometheus-style HTTP handler.
// Register the Observe method using RegisterStatsHandler to begin
// collecting snapshots.
type StatsExporter struct {
	dispatched         atomic.Uint64
	dropped            atomic.Uint64
	allocationFailures atomic.Uint64
	cyclesCompleted    atomic.Uint64
	batchesScheduled   atomic.Uint64
	suppressed         atomic.Uint64
	outstanding        atomic.Int64
	outstandingBytes   atomic.Int64
}

// NewStatsExporter creates a new exporter instance.
func NewStatsExporter() *StatsExporter {
	return &StatsExporter{}
}

// Observe can be registered with RegisterStatsHandler to record stats
// snapshots.
func (e *StatsExporter) Observe(_ context.Context, stats Stats) {
	e.dispatched.Store(stats.Dispatched)
	e.dropped.Store(stats.Dropped)
	e.allocationFailures.Store(stats.AllocationFailures)
	e.cyclesCompleted.Store(stats.CyclesCompleted)
	e.batchesScheduled.Store(stats.BatchesScheduled)
	e.suppressed.Store(stats.SuppressedDiagnostics)
	e.outstanding.Store(stats.OutstandingPayloads)
	e.outstandingBytes.Store(stats.OutstandingPayloadBytes)
}

// ServeHTTP renders the stats using Prometheus exposition format.
func (e *StatsExporter) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintln(w, "# HELP tidelog_dispatched_total Total records accepted into dispatch queues")
	fmt.Fprintln(w, "# TYPE tidelog_dispatched_total counter")
	fmt.Fprintf(w, "tidelog_dispatched_total %d\n", e.dispatched.Load())

	fmt.Fprintln(w, "# HELP tidelog_dropped_total Total records dropped before reaching a queue")
	fmt.Fprintln(w, "# TYPE tidelog_dropped_total counter")
	fmt.Fprintf(w, "tidelog_dropped_total %d\n", e.dropped.Load())

	fmt.Fprintln(w, "# HELP tidelog_allocation_failures_total Total payload allocations rejected")
	fmt.Fprintln(w, "# TYPE tidelog_allocation_failures_total counter")
	fmt.Fprintf(w, "tidelog_allocation_failures_total %d\n", e.allocationFailures.Load())

	fmt.Fprintln(w, "# HELP tidelog_cycles_completed_total Total logger update cycles completed")
	fmt.Fprintln(w, "# TYPE tidelog_cycles_completed_total counter")
	fmt.Fprintf(w, "tidelog_cycles_completed_total %d\n", e.cyclesCompleted.Load())

	fmt.Fprintln(w, "# HELP tidelog_batches_total Total process-wide update batches")
	fmt.Fprintln(w, "# TYPE tidelog_batches_total counter")
	fmt.Fprintf(w, "tidelog_batches_total %d\n", e.batchesScheduled.Load())

	fmt.Fprintln(w, "# HELP tidelog_suppressed_diagnostics_total Total diagnostic lines dropped by rate limiting")
	fmt.Fprintln(w, "# TYPE tidelog_suppressed_diagnostics_total counter")
	fmt.Fprintf(w, "tidelog_suppressed_diagnostics_total %d\n", e.suppressed.Load())

	fmt.Fprintln(w, "# HELP tidelog_outstanding_payloads Live payload allocations across all managers")
	fmt.Fprintln(w, "# TYPE tidelog_outstanding_payloads gauge")
	fmt.Fprintf(w, "tidelog_outstanding_payloads %d\n", e.outstanding.Load())

	fmt.Fprintln(w, "# HELP tidelog_outstanding_payload_bytes Live payload bytes across all managers")
	fmt.Fprintln(w, "# TYPE tidelog_outstanding_payload_bytes gauge")
	fmt.Fprintf(w, "tidelog_outstanding_payload_bytes %d\n", e.outstandingBytes.Load())
}
