// File: resolver/resolver_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Delivery, weak-handler cancellation, caching and drain behavior with
// an injected lookup.

package resolver_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/momentics/hioload-transport/api"
	"github.com/momentics/hioload-transport/resolver"
)

func collect() (api.ResultHandler, chan api.ResolveResult) {
	ch := make(chan api.ResolveResult, 1)
	return api.ResultHandlerFunc(func(res api.ResolveResult) { ch <- res }), ch
}

func TestResolveLiteralAddress(t *testing.T) {
	r, err := resolver.New(resolver.WithLookupFunc(func(ctx context.Context, host string) (string, error) {
		t.Errorf("lookup called for literal host %q", host)
		return "", errors.New("unexpected")
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	h, ch := collect()
	r.ResolveAsync("tcp/127.0.0.1:8080", resolver.NewHandlerRef(h))
	r.WaitPending()
	res := <-ch
	if res.Err != nil || res.Addr != "127.0.0.1:8080" {
		t.Fatalf("got %+v", res)
	}
}

func TestResolveHostname(t *testing.T) {
	r, err := resolver.New(resolver.WithLookupFunc(func(ctx context.Context, host string) (string, error) {
		if host != "db.internal" {
			t.Errorf("lookup host %q", host)
		}
		return "10.1.2.3", nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	h, ch := collect()
	r.ResolveAsync("tcp/db.internal:5432", resolver.NewHandlerRef(h))
	r.WaitPending()
	res := <-ch
	if res.Err != nil || res.Addr != "10.1.2.3:5432" {
		t.Fatalf("got %+v", res)
	}
}

func TestDroppedHandlerNeverFires(t *testing.T) {
	release := make(chan struct{})
	r, err := resolver.New(resolver.WithLookupFunc(func(ctx context.Context, host string) (string, error) {
		<-release
		return "10.0.0.1", nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var fired atomic.Bool
	ref := resolver.NewHandlerRef(api.ResultHandlerFunc(func(api.ResolveResult) { fired.Store(true) }))
	r.ResolveAsync("tcp/slow.example.com:80", ref)
	ref.Drop()
	close(release)
	r.WaitPending()
	if fired.Load() {
		t.Fatal("dropped handler received a delivery")
	}
}

func TestCacheHitWithinTTL(t *testing.T) {
	mock := clock.NewMock()
	var lookups atomic.Int64
	r, err := resolver.New(
		resolver.WithClock(mock),
		resolver.WithCacheTTL(time.Minute),
		resolver.WithLookupFunc(func(ctx context.Context, host string) (string, error) {
			lookups.Add(1)
			return "192.0.2.7", nil
		}))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	for i := 0; i < 3; i++ {
		h, ch := collect()
		r.ResolveAsync("tcp/cached.example.com:443", resolver.NewHandlerRef(h))
		r.WaitPending()
		if res := <-ch; res.Addr != "192.0.2.7:443" {
			t.Fatalf("got %+v", res)
		}
	}
	if got := lookups.Load(); got != 1 {
		t.Fatalf("lookup ran %d times, want 1 (cache)", got)
	}

	mock.Add(2 * time.Minute)
	h, ch := collect()
	r.ResolveAsync("tcp/cached.example.com:443", resolver.NewHandlerRef(h))
	r.WaitPending()
	<-ch
	if got := lookups.Load(); got != 2 {
		t.Fatalf("lookup ran %d times after expiry, want 2", got)
	}
}

func TestBadSpecDelivery(t *testing.T) {
	r, err := resolver.New(resolver.WithLookupFunc(func(ctx context.Context, host string) (string, error) {
		return "", errors.New("unexpected lookup")
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	h, ch := collect()
	r.ResolveAsync("not-an-endpoint", resolver.NewHandlerRef(h))
	r.WaitPending()
	res := <-ch
	if !errors.Is(res.Err, api.ErrBadSpec) {
		t.Fatalf("got %+v, want ErrBadSpec", res)
	}
}

// Scenario: many delayed resolutions, every one delivered or dropped by
// the time WaitPending returns.
func TestWaitPendingDrains(t *testing.T) {
	var mu sync.Mutex
	delivered := 0
	r, err := resolver.New(
		resolver.WithMaxInFlight(8),
		resolver.WithLookupFunc(func(ctx context.Context, host string) (string, error) {
			time.Sleep(time.Millisecond)
			return "203.0.113.9", nil
		}))
	if err != nil {
		t.Fatal(err)
	}

	const n = 100
	for i := 0; i < n; i++ {
		ref := resolver.NewHandlerRef(api.ResultHandlerFunc(func(api.ResolveResult) {
			mu.Lock()
			delivered++
			mu.Unlock()
		}))
		r.ResolveAsync("tcp/burst.example.com:80", ref)
	}
	r.WaitPending()
	mu.Lock()
	defer mu.Unlock()
	if delivered != n {
		t.Fatalf("delivered %d of %d before WaitPending returned", delivered, n)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestHandlerRefDeliversOnce(t *testing.T) {
	var count atomic.Int64
	ref := resolver.NewHandlerRef(api.ResultHandlerFunc(func(api.ResolveResult) { count.Add(1) }))
	if !ref.Deliver(api.ResolveResult{}) {
		t.Fatal("first delivery failed")
	}
	if ref.Deliver(api.ResolveResult{}) {
		t.Fatal("second delivery succeeded")
	}
	if count.Load() != 1 {
		t.Fatalf("handler ran %d times", count.Load())
	}
}
