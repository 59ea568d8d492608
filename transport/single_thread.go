// File: transport/single_thread.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-thread mode. With exactly one worker the caller may drive the
// event loop in its own goroutine instead of starting one: arm the loop
// with InitEventLoop, call EventLoopIteration until it reports false,
// or hand the goroutine over with Main. Every delegate requires a pool
// of size one.

package transport

import "github.com/momentics/hioload-transport/api"

func (t *Transport) assertSingleThread() api.TransportThread {
	if len(t.threads) != 1 {
		panic("transport: single-thread operation on a multi-thread pool")
	}
	return t.threads[0]
}

// TimeSampler returns the single worker's clock.
func (t *Transport) TimeSampler() api.TimeSampler {
	return t.assertSingleThread().TimeSampler()
}

// InitEventLoop arms the single worker's loop in the calling goroutine.
func (t *Transport) InitEventLoop() bool {
	return t.assertSingleThread().InitEventLoop()
}

// EventLoopIteration runs one iteration of the single worker's loop and
// reports whether the loop should continue.
func (t *Transport) EventLoopIteration() bool {
	return t.assertSingleThread().EventLoopIteration()
}

// Main runs the single worker's loop to completion in the calling
// goroutine.
func (t *Transport) Main() {
	t.assertSingleThread().Main()
}
