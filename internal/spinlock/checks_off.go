//go:build !lockcheck

package spinlock

// ChecksEnabled reports whether lock misuse checks are compiled into this
// build. Builds tagged lockcheck panic on protocol violations such as
// unlocking a lock that is not held; release builds carry no checks.
const ChecksEnabled = false
