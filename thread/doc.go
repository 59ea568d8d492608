// File: thread/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package thread implements the event-loop worker behind the transport
// dispatcher. Each Thread owns a command queue, a timer scheduler and a
// set of I/O components (listeners and connections). All work funnels
// through the loop: callers enqueue executables from any goroutine and
// the loop drains them in FIFO order, fires due timers and performs
// periodic stats logging.
//
// A Thread normally runs its loop on a pool goroutine via Start. It can
// instead be driven cooperatively in the caller's goroutine through
// InitEventLoop / EventLoopIteration / Main, which is how the
// dispatcher's single-thread mode works.

package thread
