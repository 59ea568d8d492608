// File: thread/io_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Listener/connection integration over loopback TCP.

package thread_test

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/momentics/hioload-transport/api"
	"github.com/momentics/hioload-transport/pool"
	"github.com/momentics/hioload-transport/thread"
)

type echoAdapter struct{}

func (echoAdapter) InitChannel(conn api.Connection) (api.PacketHandler, api.Context) {
	return api.PacketHandlerFunc(func(pkt []byte, ctx api.Context) {
		conn.Send(append([]byte(nil), pkt...))
	}), api.Context{}
}

type collectHandler struct {
	ch chan []byte
}

func (h *collectHandler) HandlePacket(pkt []byte, ctx api.Context) {
	h.ch <- append([]byte(nil), pkt...)
}

func TestListenConnectEcho(t *testing.T) {
	th := thread.New(stubResolver{})
	p := pool.New(1)
	if err := th.Start(p); err != nil {
		t.Fatal(err)
	}
	defer func() {
		th.ShutDown(true)
		p.Join()
	}()

	ln, err := th.Listen("tcp/127.0.0.1:0", nil, echoAdapter{})
	if err != nil {
		t.Fatal(err)
	}
	if ln.Owner() != api.TransportThread(th) {
		t.Fatal("listener owner is not the creating thread")
	}

	spec := fmt.Sprintf("tcp/%s", ln.Addr().String())
	recv := &collectHandler{ch: make(chan []byte, 16)}
	conn, err := th.Connect(spec, nil, recv, api.Context{}, nil, api.Context{})
	if err != nil {
		t.Fatal(err)
	}
	if conn.Owner() != api.TransportThread(th) {
		t.Fatal("connection owner is not the creating thread")
	}

	msg := []byte("ping over the loopback")
	deadline := time.Now().Add(2 * time.Second)
	for !conn.Send(msg) {
		// The dial is asynchronous; with direct write disabled the
		// queue accepts immediately, so failure here means closed.
		if time.Now().After(deadline) {
			t.Fatal("Send kept failing")
		}
		time.Sleep(5 * time.Millisecond)
	}

	var got []byte
	for !bytes.Contains(got, msg) {
		select {
		case pkt := <-recv.ch:
			got = append(got, pkt...)
		case <-time.After(2 * time.Second):
			t.Fatalf("echo not received, got %q so far", got)
		}
	}
}

// ctxAdapter records the context delivered with each channel packet.
type ctxAdapter struct {
	ch chan api.Context
}

func (a ctxAdapter) InitChannel(conn api.Connection) (api.PacketHandler, api.Context) {
	return api.PacketHandlerFunc(func(pkt []byte, ctx api.Context) {
		a.ch <- ctx
	}), api.Context{}
}

func TestConnectContextDelivery(t *testing.T) {
	th := thread.New(stubResolver{})
	p := pool.New(1)
	if err := th.Start(p); err != nil {
		t.Fatal(err)
	}
	defer func() {
		th.ShutDown(true)
		p.Join()
	}()

	ln, err := th.Listen("tcp/127.0.0.1:0", nil, echoAdapter{})
	if err != nil {
		t.Fatal(err)
	}
	spec := fmt.Sprintf("tcp/%s", ln.Addr().String())
	adminCtx := api.Context{Value: "admin"}
	connCtx := api.Context{Value: "conn"}

	// With an admin handler, packets arrive with adminCtx.
	adminGot := make(chan api.Context, 16)
	admin := api.PacketHandlerFunc(func(pkt []byte, ctx api.Context) { adminGot <- ctx })
	c1, err := th.Connect(spec, nil, admin, adminCtx, nil, connCtx)
	if err != nil {
		t.Fatal(err)
	}
	if !c1.Send([]byte("to admin")) {
		t.Fatal("Send rejected")
	}
	select {
	case ctx := <-adminGot:
		if ctx.Value != "admin" {
			t.Fatalf("admin packet carried %v, want %q", ctx.Value, "admin")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("admin handler never fired")
	}

	// Without an admin handler, the adapter's channel gets connCtx.
	chanGot := make(chan api.Context, 16)
	c2, err := th.Connect(spec, nil, nil, adminCtx, ctxAdapter{ch: chanGot}, connCtx)
	if err != nil {
		t.Fatal(err)
	}
	if !c2.Send([]byte("to channel")) {
		t.Fatal("Send rejected")
	}
	select {
	case ctx := <-chanGot:
		if ctx.Value != "conn" {
			t.Fatalf("channel packet carried %v, want %q", ctx.Value, "conn")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel handler never fired")
	}
}

func TestComponentAccounting(t *testing.T) {
	th := thread.New(stubResolver{})
	ln, err := th.Listen("tcp/127.0.0.1:0", nil, echoAdapter{})
	if err != nil {
		t.Fatal(err)
	}
	if got := th.NumIOComponents(); got != 1 {
		t.Fatalf("NumIOComponents = %d, want 1", got)
	}
	if err := ln.Close(); err != nil {
		t.Fatal(err)
	}
	if got := th.NumIOComponents(); got != 0 {
		t.Fatalf("NumIOComponents after close = %d, want 0", got)
	}
	th.ShutDown(true)
}

func TestBadSpec(t *testing.T) {
	th := thread.New(stubResolver{})
	if _, err := th.Listen("tcp/", nil, echoAdapter{}); err == nil {
		t.Fatal("Listen accepted a malformed spec")
	}
	if _, err := th.Connect("no-port-here", nil, nil, api.Context{}, nil, api.Context{}); err == nil {
		t.Fatal("Connect accepted a malformed spec")
	}
	th.ShutDown(true)
}

func TestShutdownClosesComponents(t *testing.T) {
	th := thread.New(stubResolver{})
	p := pool.New(1)
	if err := th.Start(p); err != nil {
		t.Fatal(err)
	}
	if _, err := th.Listen("tcp/127.0.0.1:0", nil, echoAdapter{}); err != nil {
		t.Fatal(err)
	}
	th.ShutDown(true)
	p.Join()
	if got := th.NumIOComponents(); got != 0 {
		t.Fatalf("NumIOComponents after shutdown = %d, want 0", got)
	}
}

func TestListenAfterShutDown(t *testing.T) {
	th := thread.New(stubResolver{})
	th.ShutDown(true)
	if _, err := th.Listen("tcp/127.0.0.1:0", nil, echoAdapter{}); err == nil {
		t.Fatal("Listen succeeded on a shut-down thread")
	}
}
