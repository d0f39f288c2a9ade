package tidelog

// Sink consumes the sorted records of one update cycle. Implementations
// live outside the core (see pkg/sinks); the runtime only drives them
// through this contract.
type Sink interface {
	// ScheduleUpdate schedules the sink's read of the current cycle after
	// dep completes and returns the completion handle of the scheduled
	// work. The sink reads through lock's queue with BeginRead/EndRead and
	// must not retain payload handles or record views past EndRead.
	ScheduleUpdate(lock *ScopedLock, dep *TaskHandle) *TaskHandle

	// Flush forces buffered output to its destination. The batch scheduler
	// calls it once per batch from the trailing task.
	Flush() error

	// Dispose releases the sink's resources. The owning logger calls it
	// once, after the final drain.
	Dispose() error
}
