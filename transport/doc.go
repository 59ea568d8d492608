// File: transport/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package transport implements the dispatcher facade: a single
// user-visible object multiplexing a pool of event-loop worker threads.
//
// Endpoint operations (Listen, Connect) are sharded across workers by a
// salted hash of the endpoint spec; tuning and lifecycle operations are
// broadcast to every worker in index order; operations on an existing
// I/O component route to the worker that created it. With one worker
// the facade additionally supports driving the event loop in the
// caller's goroutine.
//
// The facade is stateless on the hot path. The worker list is fixed at
// construction and read-only afterwards, so facade calls from multiple
// goroutines proceed in parallel without locks.

package transport
