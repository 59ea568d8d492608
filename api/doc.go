// File: api/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package api defines the contracts between the transport dispatcher
// and its collaborators: the event-loop worker thread, I/O components,
// packet streaming and server adaptation, timer scheduling, executable
// submission, asynchronous name resolution, and the thread pool that
// workers run on.
//
// Implementations live in the transport, thread, resolver and pool
// packages. Everything here is an interface or a small value type so
// that each side can be replaced independently in tests.

package api
