package tidelog

import "time"

// ClockFunc supplies record timestamps as nanoseconds. Values from one
// clock must be comparable process-wide: the dispatch queue orders records
// by them. Tests inject deterministic clocks through Config and
// RuntimeOptions.
type ClockFunc func() int64

// SystemClock returns the current UTC wall time in nanoseconds. It is the
// default record clock.
func SystemClock() int64 {
	return time.Now().UnixNano()
}
