// Package lifecycle tracks process-wide shutdown state shared between the
// signal handler and the health endpoint.
package lifecycle

import "sync/atomic"

var shuttingDown atomic.Bool

// SetShuttingDown marks the process as draining. The health endpoint answers
// 503 while the flag is set so load balancers stop routing new traffic here.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}
