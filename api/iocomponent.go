// File: api/iocomponent.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// I/O component contracts. A component is any listener or connection
// tied to exactly one worker thread. The component keeps a non-owning
// back-reference to its owner; the owner holds the only owning
// reference, so destruction always flows worker -> component.

package api

import "net"

// IOComponent is a listener or connection owned by one transport thread.
//
// Owner reports the thread that created the component and never changes.
// The enable/disable and close methods are invoked by the owning thread;
// application code routes such requests through the dispatcher, which
// forwards them to Owner().
type IOComponent interface {
	// Owner returns the transport thread this component belongs to.
	Owner() TransportThread

	// SetReadEnabled gates inbound processing (accepting, reading).
	SetReadEnabled(enabled bool)

	// SetWriteEnabled gates outbound processing.
	SetWriteEnabled(enabled bool)

	// Close releases the component. Safe to call more than once.
	Close() error
}

// Connector is a listening component.
type Connector interface {
	IOComponent

	// Addr returns the bound listen address.
	Addr() net.Addr

	// Spec returns the endpoint spec the connector was created from.
	Spec() string
}

// Connection is a single bidirectional channel.
type Connection interface {
	IOComponent

	// Spec returns the endpoint spec the connection was created from,
	// or the remote address string for accepted connections.
	Spec() string

	// RemoteAddr returns the peer address, nil before the connection
	// is established.
	RemoteAddr() net.Addr

	// Send queues one packet for transmission. It reports false when
	// the connection is closed or its output queue is full.
	Send(pkt []byte) bool
}
