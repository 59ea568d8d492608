// File: transport/integration_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// End-to-end: real worker threads on a real pool, a loopback listener,
// and an outbound connection whose spec resolves through the shared
// resolver.

package transport_test

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-transport/api"
	"github.com/momentics/hioload-transport/pool"
	"github.com/momentics/hioload-transport/resolver"
	"github.com/momentics/hioload-transport/transport"
)

type echoAdapter struct{}

func (echoAdapter) InitChannel(conn api.Connection) (api.PacketHandler, api.Context) {
	return api.PacketHandlerFunc(func(pkt []byte, ctx api.Context) {
		conn.Send(append([]byte(nil), pkt...))
	}), api.Context{}
}

func TestEndToEndEcho(t *testing.T) {
	res, err := resolver.New(resolver.WithLookupFunc(
		func(ctx context.Context, host string) (string, error) {
			if host != "echo.test" {
				return "", fmt.Errorf("unknown host %q", host)
			}
			return "127.0.0.1", nil
		}))
	if err != nil {
		t.Fatal(err)
	}

	const n = 2
	tr := transport.New(res, n)
	p := pool.New(n)
	if err := tr.Start(p); err != nil {
		t.Fatal(err)
	}

	ln, err := tr.Listen("tcp/127.0.0.1:0", nil, echoAdapter{})
	if err != nil {
		t.Fatal(err)
	}

	_, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	received := make(chan []byte, 16)
	conn, err := tr.Connect("tcp/echo.test:"+port, nil,
		api.PacketHandlerFunc(func(pkt []byte, ctx api.Context) {
			received <- append([]byte(nil), pkt...)
		}),
		api.Context{}, nil, api.Context{})
	if err != nil {
		t.Fatal(err)
	}
	if conn.Owner() == nil {
		t.Fatal("connection has no owner")
	}

	msg := []byte("dispatcher end to end")
	if !conn.Send(msg) {
		t.Fatal("Send rejected")
	}
	var got []byte
	for !bytes.Contains(got, msg) {
		select {
		case pkt := <-received:
			got = append(got, pkt...)
		case <-time.After(3 * time.Second):
			t.Fatalf("echo not received, got %q so far", got)
		}
	}

	// quiescent snapshot: listener, outbound conn, accepted conn
	tr.Sync()
	if total := tr.NumIOComponents(); total < 3 {
		t.Errorf("NumIOComponents = %d, want >= 3", total)
	}

	tr.ShutDown(true)
	tr.WaitFinished()
	if tr.Execute(api.ExecutableFunc(func() {})) {
		t.Error("Execute accepted after shutdown")
	}
	if total := tr.NumIOComponents(); total != 0 {
		t.Errorf("NumIOComponents after shutdown = %d, want 0", total)
	}
	tr.Release()
	p.Join()
}

func TestFacadeSingleThreadLoop(t *testing.T) {
	res, err := resolver.New()
	if err != nil {
		t.Fatal(err)
	}
	tr := transport.New(res, 1)
	if !tr.InitEventLoop() {
		t.Fatal("InitEventLoop refused")
	}
	fired := false
	if _, err := tr.Scheduler().Schedule(10*time.Millisecond, func() { fired = true }); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !fired {
		if time.Now().After(deadline) {
			t.Fatal("scheduled task never fired")
		}
		tr.EventLoopIteration()
	}
	tr.ShutDown(true)
	tr.WaitFinished()
	tr.Release()
}
