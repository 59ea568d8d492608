// Package api
// Author: momentics
//
// Time sampling contract for single-thread mode.

package api

import "time"

// TimeSampler exposes the clock a worker thread samples time from.
// In single-thread mode the caller shares this clock with the loop.
type TimeSampler interface {
	Now() time.Time
}
