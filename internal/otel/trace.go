package otel

import (
	"os"
	"sync/atomic"
)

// traceEnabled gates high-volume debug events such as one per debounced
// change notification.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("VERDANT_TRACE") != "")
}

// TraceEnabled reports whether VERDANT_TRACE is set.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

// SetTraceEnabled overrides the flag; used by tests and the --trace flag.
func SetTraceEnabled(v bool) {
	traceEnabled.Store(v)
}
