// Package coarsetime is a clock refreshed every Resolution by a background
// goroutine. Reading it costs an atomic load instead of a time.Now call.
//
// It is used for last-traffic timestamps, which only need to be compared
// against timeouts measured in seconds.
package coarsetime

import (
	"sync/atomic"
	"time"
)

// Resolution is the refresh interval of the clock.
const Resolution = 50 * time.Millisecond

var now atomic.Int64

func init() {
	now.Store(time.Now().UnixNano())

	ticker := time.NewTicker(Resolution)
	go func() {
		for t := range ticker.C {
			now.Store(t.UnixNano())
		}
	}()
}

// Now returns the current coarse time.
func Now() time.Time {
	return time.Unix(0, now.Load())
}

// UnixNano returns the current coarse time in nanoseconds.
func UnixNano() int64 {
	return now.Load()
}

// Since returns the coarse time elapsed since a UnixNano timestamp.
func Since(unixNano int64) time.Duration {
	return time.Duration(now.Load() - unixNano)
}
