// File: thread/connector.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The listening I/O component. A connector owns a net.Listener and an
// accept goroutine bounded by the component's lifetime. Accepted
// connections become components of the same owning thread; the server
// adapter decides per connection whether to take it and with which
// packet handler.

package thread

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-transport/api"
)

// acceptPausePoll is how often a disabled accept loop rechecks its gate.
const acceptPausePoll = 5 * time.Millisecond

type connector struct {
	owner    *Thread
	spec     string
	ln       net.Listener
	streamer api.PacketStreamer
	adapter  api.ServerAdapter

	readEnabled atomic.Bool
	closed      atomic.Bool
	closeCh     chan struct{}
}

var _ api.Connector = (*connector)(nil)

// Listen creates a listening connector for spec on this thread.
func (t *Thread) Listen(spec string, streamer api.PacketStreamer, adapter api.ServerAdapter) (api.Connector, error) {
	if !t.isAccepting() {
		return nil, api.ErrTransportShutDown
	}
	if adapter == nil {
		return nil, fmt.Errorf("listen %s: nil server adapter", spec)
	}
	network, hostport, err := parseSpec(spec)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen(network, hostport)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", spec, err)
	}
	c := &connector{
		owner:    t,
		spec:     spec,
		ln:       ln,
		streamer: streamer,
		adapter:  adapter,
		closeCh:  make(chan struct{}),
	}
	c.readEnabled.Store(true)
	t.register(c)
	go c.acceptLoop()
	return c, nil
}

// Owner returns the thread that created this connector.
func (c *connector) Owner() api.TransportThread { return c.owner }

// Spec returns the endpoint spec the connector was created from.
func (c *connector) Spec() string { return c.spec }

// Addr returns the bound listen address.
func (c *connector) Addr() net.Addr { return c.ln.Addr() }

// SetReadEnabled gates the accept loop.
func (c *connector) SetReadEnabled(enabled bool) { c.readEnabled.Store(enabled) }

// SetWriteEnabled is a no-op for listeners.
func (c *connector) SetWriteEnabled(enabled bool) {}

// Close stops accepting and releases the listener.
func (c *connector) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.closeCh)
	err := c.ln.Close()
	c.owner.deregister(c)
	return err
}

func (c *connector) acceptLoop() {
	clk := c.owner.clk
	for {
		if c.closed.Load() {
			return
		}
		if !c.readEnabled.Load() {
			clk.Sleep(acceptPausePoll)
			continue
		}
		conn, err := c.ln.Accept()
		if err != nil {
			if c.closed.Load() {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			c.owner.log.Debug("accept failed", zap.String("spec", c.spec), zap.Error(err))
			_ = c.Close()
			return
		}
		c.handleAccepted(conn)
	}
}

// handleAccepted wraps an inbound socket as a connection on the owning
// thread, asks the adapter for a handler, and starts I/O. The adapter
// rejects the connection by returning a nil handler.
func (c *connector) handleAccepted(raw net.Conn) {
	conn := newInboundConnection(c.owner, raw.RemoteAddr().String(), c.streamer)
	handler, ctx := c.adapter.InitChannel(conn)
	if handler == nil {
		_ = raw.Close()
		return
	}
	conn.handler = handler
	conn.handlerCtx = ctx
	c.owner.register(conn)
	conn.attach(raw)
	conn.startIO()
}
