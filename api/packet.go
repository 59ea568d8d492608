// File: api/packet.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Packet-level contracts supplied by the application: how a byte stream
// is framed into packets, how inbound channels are accepted, and where
// decoded packets are delivered. The dispatcher and its workers treat
// packet contents as opaque.

package api

// Context is an opaque per-channel value handed back to packet handlers
// untouched. Callers use it to associate application state with a
// connection or an admin channel.
type Context struct {
	Value any
}

// PacketStreamer frames a raw byte stream into discrete packets.
//
// Decode inspects buffered bytes and extracts the next complete packet.
// It returns the packet payload, the number of bytes consumed, and an
// error for unrecoverable framing violations. A nil packet with zero
// consumed bytes means more data is needed.
//
// Encode appends the wire form of a packet payload to dst and returns
// the extended slice.
type PacketStreamer interface {
	Decode(buf []byte) (pkt []byte, n int, err error)
	Encode(dst []byte, pkt []byte) []byte
}

// PacketHandler receives decoded packets for one channel.
type PacketHandler interface {
	HandlePacket(pkt []byte, ctx Context)
}

// PacketHandlerFunc adapts a plain function to a PacketHandler.
type PacketHandlerFunc func(pkt []byte, ctx Context)

// HandlePacket calls f.
func (f PacketHandlerFunc) HandlePacket(pkt []byte, ctx Context) { f(pkt, ctx) }

// ServerAdapter is consulted once for every inbound connection accepted
// by a listener. InitChannel returns the handler that will receive the
// connection's packets together with the context delivered alongside
// them; returning a nil handler rejects the connection, which is closed
// immediately.
type ServerAdapter interface {
	InitChannel(conn Connection) (PacketHandler, Context)
}
