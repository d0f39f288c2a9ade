package tidelog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// diagnostics reports internal runtime failures (allocation failures,
// dropped records, leaks) without going through the logging pipeline
// itself. Lines are rate limited so a failing sink cannot flood the
// process's stderr.
type diagnostics struct {
	mu      sync.Mutex
	w       io.Writer
	limiter *rate.Limiter
	dropped atomic.Uint64
}

func newDiagnostics(w io.Writer, perSecond float64) *diagnostics {
	if w == nil {
		w = os.Stderr
	}

	if perSecond <= 0 {
		perSecond = DefaultDiagnosticsPerSecond
	}

	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}

	return &diagnostics{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// reportf writes one diagnostic line, subject to rate limiting.
func (d *diagnostics) reportf(format string, args ...any) {
	if !d.limiter.Allow() {
		d.dropped.Add(1)

		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	fmt.Fprintf(d.w, "tidelog: "+format+"\n", args...)
}

// suppressed returns how many diagnostic lines the rate limiter dropped.
func (d *diagnostics) suppressed() uint64 {
	return d.dropped.Load()
}
