// Package api
// Author: momentics
//
// Scheduler contract for timed job execution on a worker's event loop.

package api

import "time"

// Cancelable is a handle to a scheduled task.
type Cancelable interface {
	// Cancel prevents the task from firing. Canceling an already-fired
	// task is a no-op.
	Cancel()
}

// Scheduler schedules callbacks on the owning thread's event loop.
// Callbacks run on the loop goroutine and must not block.
type Scheduler interface {
	// Schedule arranges for fn to run after delay.
	Schedule(delay time.Duration, fn func()) (Cancelable, error)

	// Now returns the scheduler's current time.
	Now() time.Time
}
