// File: thread/connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The bidirectional I/O component. An outbound connection resolves its
// spec through the shared resolver (literal addresses short-circuit),
// dials, then runs gated read and write loops. Accepted connections
// skip straight to the loops. Packet framing is delegated to the
// caller's streamer; a nil streamer passes raw read chunks through as
// packets. Decoded packets are handed to the handler synchronously on
// the read goroutine and must not be retained.

package thread

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-transport/api"
)

const (
	dialTimeout = 10 * time.Second

	// ioPausePoll is how often a disabled read/write loop rechecks its gate.
	ioPausePoll = 5 * time.Millisecond

	// outQueueSlots bounds the output queue in packets; bytes are
	// bounded separately by the owner's MaxOutputBufferSize.
	outQueueSlots = 256
)

type connection struct {
	owner      *Thread
	spec       string
	network    string
	streamer   api.PacketStreamer
	handler    api.PacketHandler
	handlerCtx api.Context

	mu     sync.Mutex
	conn   net.Conn
	closed bool

	wmu sync.Mutex // serializes socket writes

	closeCh  chan struct{}
	outCh    chan []byte
	outBytes atomic.Int64

	readEnabled  atomic.Bool
	writeEnabled atomic.Bool
	ioStarted    atomic.Bool

	ref *resolveRef // outbound only, nil for accepted connections
}

var _ api.Connection = (*connection)(nil)

// Connect creates an outbound connection for spec on this thread.
// Packets with no channel handler are delivered to adminHandler with
// adminCtx; when adminHandler is nil and adapter is not, the adapter is
// consulted once the connection is established and its channel packets
// are delivered with connCtx.
func (t *Thread) Connect(spec string, streamer api.PacketStreamer, adminHandler api.PacketHandler,
	adminCtx api.Context, adapter api.ServerAdapter, connCtx api.Context) (api.Connection, error) {
	if !t.isAccepting() {
		return nil, api.ErrTransportShutDown
	}
	network, hostport, err := parseSpec(spec)
	if err != nil {
		return nil, err
	}
	c := newConnection(t, spec, streamer)
	c.network = network
	c.handler = adminHandler
	c.handlerCtx = adminCtx
	t.register(c)

	host, _, _ := net.SplitHostPort(hostport)
	if host == "" || net.ParseIP(host) != nil {
		go c.dial(hostport, adapter, connCtx)
		return c, nil
	}

	c.ref = &resolveRef{conn: c, adapter: adapter, connCtx: connCtx}
	t.resolver.ResolveAsync(spec, c.ref)
	return c, nil
}

func newConnection(t *Thread, spec string, streamer api.PacketStreamer) *connection {
	c := &connection{
		owner:    t,
		spec:     spec,
		streamer: streamer,
		closeCh:  make(chan struct{}),
		outCh:    make(chan []byte, outQueueSlots),
	}
	c.readEnabled.Store(true)
	c.writeEnabled.Store(true)
	return c
}

// newInboundConnection wraps an accepted socket; the caller assigns the
// handler and starts I/O once the adapter has taken the connection.
func newInboundConnection(t *Thread, spec string, streamer api.PacketStreamer) *connection {
	return newConnection(t, spec, streamer)
}

// resolveRef is the weak handler reference enqueued with the resolver
// for an outbound connection. Closing the connection drops the ref, so
// a late resolution is silently skipped and never reaches a dead
// component.
type resolveRef struct {
	mu      sync.Mutex
	conn    *connection
	adapter api.ServerAdapter
	connCtx api.Context
}

var _ api.ResultRef = (*resolveRef)(nil)

// Deliver hands the resolution to the connection unless it was dropped.
func (r *resolveRef) Deliver(res api.ResolveResult) bool {
	r.mu.Lock()
	c := r.conn
	r.conn = nil
	r.mu.Unlock()
	if c == nil {
		return false
	}
	if res.Err != nil {
		c.owner.log.Debug("resolve failed", zap.String("spec", c.spec), zap.Error(res.Err))
		_ = c.Close()
		return true
	}
	go c.dial(res.Addr, r.adapter, r.connCtx)
	return true
}

func (r *resolveRef) drop() {
	r.mu.Lock()
	r.conn = nil
	r.mu.Unlock()
}

// dial connects to addr and starts I/O. Runs off the resolver or the
// caller goroutine, never on the owner's loop.
func (c *connection) dial(addr string, adapter api.ServerAdapter, connCtx api.Context) {
	d := net.Dialer{Timeout: dialTimeout}
	raw, err := d.Dial(c.network, addr)
	if err != nil {
		c.owner.log.Debug("connect failed", zap.String("spec", c.spec), zap.Error(err))
		_ = c.Close()
		return
	}
	if c.handler == nil && adapter != nil {
		handler, _ := adapter.InitChannel(c)
		if handler == nil {
			_ = raw.Close()
			_ = c.Close()
			return
		}
		// The caller's connCtx labels the channel it asked for; the
		// adapter's returned context applies to accepted connections.
		c.handler = handler
		c.handlerCtx = connCtx
	}
	if !c.attach(raw) {
		return
	}
	c.startIO()
}

// attach installs the socket and applies tuning. Reports false when the
// connection was closed while dialing.
func (c *connection) attach(raw net.Conn) bool {
	applyTCPOptions(raw, c.owner.tcpNoDelay.Load())
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = raw.Close()
		return false
	}
	c.conn = raw
	c.mu.Unlock()
	return true
}

func (c *connection) startIO() {
	if !c.ioStarted.CompareAndSwap(false, true) {
		return
	}
	go c.readLoop()
	go c.writeLoop()
}

// Owner returns the thread that created this connection.
func (c *connection) Owner() api.TransportThread { return c.owner }

// Spec returns the endpoint spec or remote address the connection was
// created from.
func (c *connection) Spec() string { return c.spec }

// RemoteAddr returns the peer address, nil before the connection is
// established.
func (c *connection) RemoteAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.RemoteAddr()
}

// SetReadEnabled gates the read loop.
func (c *connection) SetReadEnabled(enabled bool) { c.readEnabled.Store(enabled) }

// SetWriteEnabled gates the write loop and direct writes.
func (c *connection) SetWriteEnabled(enabled bool) { c.writeEnabled.Store(enabled) }

// Send queues one packet for transmission. With direct write enabled
// and the socket present, the packet is written inline instead.
// Reports false when the connection is closed or the output budget is
// exhausted.
func (c *connection) Send(pkt []byte) bool {
	c.mu.Lock()
	closed, conn := c.closed, c.conn
	c.mu.Unlock()
	if closed {
		return false
	}
	if conn != nil && c.owner.directWrite.Load() && c.writeEnabled.Load() {
		return c.writeNow(conn, pkt)
	}
	if max := c.owner.maxOutput.Load(); max > 0 && c.outBytes.Load()+int64(len(pkt)) > max {
		return false
	}
	c.outBytes.Add(int64(len(pkt)))
	select {
	case c.outCh <- pkt:
		return true
	default:
		c.outBytes.Add(-int64(len(pkt)))
		return false
	}
}

// Close releases the connection. Safe from any goroutine, idempotent.
func (c *connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	close(c.closeCh)
	if c.ref != nil {
		c.ref.drop()
	}
	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.owner.deregister(c)
	return err
}

func (c *connection) encode(pkt []byte) []byte {
	if c.streamer == nil {
		return pkt
	}
	return c.streamer.Encode(nil, pkt)
}

func (c *connection) writeNow(conn net.Conn, pkt []byte) bool {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := conn.Write(c.encode(pkt)); err != nil {
		c.owner.log.Debug("write failed", zap.String("spec", c.spec), zap.Error(err))
		return false
	}
	return true
}

func (c *connection) currentConn() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *connection) writeLoop() {
	clk := c.owner.clk
	conn := c.currentConn()
	for {
		select {
		case <-c.closeCh:
			return
		case pkt := <-c.outCh:
			c.outBytes.Add(-int64(len(pkt)))
			for !c.writeEnabled.Load() {
				select {
				case <-c.closeCh:
					return
				default:
				}
				clk.Sleep(ioPausePoll)
			}
			if !c.writeNow(conn, pkt) {
				_ = c.Close()
				return
			}
		}
	}
}

func (c *connection) readLoop() {
	clk := c.owner.clk
	conn := c.currentConn()
	bufSize := int(c.owner.maxInput.Load())
	if bufSize <= 0 || bufSize > 64*1024 {
		bufSize = 64 * 1024
	}
	buf := make([]byte, bufSize)
	var acc []byte
	for {
		select {
		case <-c.closeCh:
			return
		default:
		}
		if !c.readEnabled.Load() {
			clk.Sleep(ioPausePoll)
			continue
		}
		if timeout := time.Duration(c.owner.iocTimeout.Load()); timeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(timeout))
		} else {
			_ = conn.SetReadDeadline(time.Time{})
		}
		n, err := conn.Read(buf)
		if n > 0 {
			if !c.consume(buf[:n], &acc) {
				_ = c.Close()
				return
			}
		}
		if err != nil {
			// EOF, socket error, or idle timeout all end the component.
			_ = c.Close()
			return
		}
	}
}

// consume feeds freshly read bytes through the streamer and delivers
// complete packets. Reports false on framing violations or input
// overflow.
func (c *connection) consume(data []byte, acc *[]byte) bool {
	if c.streamer == nil {
		c.deliver(data)
		return true
	}
	*acc = append(*acc, data...)
	if max := c.owner.maxInput.Load(); max > 0 && int64(len(*acc)) > max {
		c.owner.log.Debug("input buffer overflow", zap.String("spec", c.spec))
		return false
	}
	for {
		pkt, used, err := c.streamer.Decode(*acc)
		if err != nil {
			c.owner.log.Debug("framing error", zap.String("spec", c.spec), zap.Error(err))
			return false
		}
		if pkt == nil && used == 0 {
			return true
		}
		*acc = (*acc)[used:]
		if pkt != nil {
			c.deliver(pkt)
		}
	}
}

func (c *connection) deliver(pkt []byte) {
	if c.handler == nil {
		return
	}
	c.handler.HandlePacket(pkt, c.handlerCtx)
}
