// Package coarsetime is a clock refreshed every Resolution by a background
// goroutine. Pools stamp every release with it, so reading it must be cheaper
// than time.Now.
package coarsetime

import (
	"sync/atomic"
	"time"
)

// Resolution is how stale Now may be.
const Resolution = 50 * time.Millisecond

var nanos atomic.Int64

func init() {
	nanos.Store(time.Now().UnixNano())

	go func() {
		for t := range time.Tick(Resolution) {
			nanos.Store(t.UnixNano())
		}
	}()
}

// Now returns the last stored time. It carries no monotonic reading.
func Now() time.Time {
	return time.Unix(0, nanos.Load())
}
