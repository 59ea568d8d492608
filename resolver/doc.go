// File: resolver/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package resolver implements the shared asynchronous name-resolution
// service behind the transport dispatcher. Requests carry a weak
// reference to their result handler: the caller keeps the ref and may
// drop it at any time, after which the eventual result is silently
// discarded. The dispatcher's teardown blocks on WaitPending, so no
// callback outlives the transport.
//
// Lookups run on bounded concurrent goroutines, consult an expiring
// LRU cache, and query the system's resolv.conf servers directly.

package resolver
