// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared across the dispatcher and its collaborators.

package api

import "fmt"

// Common errors used across the library.
var (
	// ErrTransportShutDown is returned when work is submitted to a
	// thread that has begun shutting down.
	ErrTransportShutDown = fmt.Errorf("transport thread is shut down")

	// ErrThreadStarted is returned by Start when the thread's event
	// loop has already been armed, by an earlier Start or by
	// InitEventLoop.
	ErrThreadStarted = fmt.Errorf("transport thread already started")

	// ErrPoolExhausted is returned by a thread pool whose capacity is
	// fully in use.
	ErrPoolExhausted = fmt.Errorf("thread pool exhausted")

	// ErrPoolClosed is returned by a closed thread pool.
	ErrPoolClosed = fmt.Errorf("thread pool closed")

	// ErrResolverClosed is delivered as a resolution failure when the
	// resolver is torn down with requests still queued.
	ErrResolverClosed = fmt.Errorf("resolver closed")

	// ErrBadSpec is returned for endpoint specs the worker cannot parse.
	ErrBadSpec = fmt.Errorf("malformed endpoint spec")

	// ErrConnectionClosed names an operation on a closed connection or
	// connector. No component in this module returns it: Close on a
	// closed component returns nil and Send reports false.
	ErrConnectionClosed = fmt.Errorf("connection closed")
)
