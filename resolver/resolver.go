// File: resolver/resolver.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The resolver proper: request fan-out, in-flight bounding, the TTL
// cache, and weak handler references.

package resolver

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/momentics/hioload-transport/api"
)

const (
	defaultCacheSize   = 256
	defaultCacheTTL    = 60 * time.Second
	defaultMaxInFlight = 16
	defaultDNSTimeout  = 5 * time.Second
)

// LookupFunc resolves a host name to a single IP address string.
type LookupFunc func(ctx context.Context, host string) (string, error)

type cacheEntry struct {
	ip      string
	expires time.Time
}

// Resolver is the shared asynchronous name-resolution service. It
// satisfies api.Resolver.
type Resolver struct {
	log    *zap.Logger
	clk    clock.Clock
	lookup LookupFunc
	ttl    time.Duration

	cache *lru.Cache[string, cacheEntry]
	sem   *semaphore.Weighted

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

var _ api.Resolver = (*Resolver)(nil)

// Option customizes resolver construction.
type Option func(*config)

type config struct {
	log         *zap.Logger
	clk         clock.Clock
	lookup      LookupFunc
	ttl         time.Duration
	cacheSize   int
	maxInFlight int64
	dnsTimeout  time.Duration
}

// WithLogger sets the resolver's logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithClock sets the clock cache expiry is measured on.
func WithClock(clk clock.Clock) Option {
	return func(c *config) { c.clk = clk }
}

// WithLookupFunc replaces the DNS lookup. Used by tests.
func WithLookupFunc(fn LookupFunc) Option {
	return func(c *config) { c.lookup = fn }
}

// WithCacheTTL sets how long resolved addresses are reused.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *config) { c.ttl = ttl }
}

// WithCacheSize sets the LRU capacity.
func WithCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// WithMaxInFlight bounds concurrent lookups.
func WithMaxInFlight(n int) Option {
	return func(c *config) { c.maxInFlight = int64(n) }
}

// New constructs a resolver.
func New(opts ...Option) (*Resolver, error) {
	cfg := &config{
		log:         zap.NewNop(),
		clk:         clock.New(),
		ttl:         defaultCacheTTL,
		cacheSize:   defaultCacheSize,
		maxInFlight: defaultMaxInFlight,
		dnsTimeout:  defaultDNSTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.lookup == nil {
		cfg.lookup = newDNSLookup(cfg.dnsTimeout)
	}
	cache, err := lru.New[string, cacheEntry](cfg.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("resolver cache: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Resolver{
		log:    cfg.log,
		clk:    cfg.clk,
		lookup: cfg.lookup,
		ttl:    cfg.ttl,
		cache:  cache,
		sem:    semaphore.NewWeighted(cfg.maxInFlight),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// ResolveAsync queues a resolution. Delivery happens on a resolver
// goroutine unless the ref is dropped first.
func (r *Resolver) ResolveAsync(spec string, ref api.ResultRef) {
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		res := api.ResolveResult{Spec: spec}
		if err := r.sem.Acquire(r.ctx, 1); err != nil {
			res.Err = api.ErrResolverClosed
		} else {
			res.Addr, res.Err = r.resolve(spec)
			r.sem.Release(1)
		}
		if !ref.Deliver(res) {
			r.log.Debug("resolution dropped", zap.String("spec", spec))
		}
	}()
}

// WaitPending blocks until every queued resolution has been delivered
// or dropped.
func (r *Resolver) WaitPending() { r.pending.Wait() }

// Close cancels outstanding lookups, waits for their delivery, and
// releases the resolver.
func (r *Resolver) Close() error {
	r.cancel()
	r.WaitPending()
	return nil
}

// resolve turns an endpoint spec into an "ip:port" address.
func (r *Resolver) resolve(spec string) (string, error) {
	hostport := spec
	if i := strings.IndexByte(spec, '/'); i >= 0 {
		hostport = spec[i+1:]
	}
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", api.ErrBadSpec, spec, err)
	}
	if host == "" || net.ParseIP(host) != nil {
		return hostport, nil
	}
	if host == "localhost" {
		return net.JoinHostPort("127.0.0.1", port), nil
	}
	if entry, ok := r.cache.Get(host); ok && entry.expires.After(r.clk.Now()) {
		return net.JoinHostPort(entry.ip, port), nil
	}
	ip, err := r.lookup(r.ctx, host)
	if err != nil {
		r.log.Debug("lookup failed", zap.String("host", host), zap.Error(err))
		return "", fmt.Errorf("resolve %q: %w", spec, err)
	}
	r.cache.Add(host, cacheEntry{ip: ip, expires: r.clk.Now().Add(r.ttl)})
	return net.JoinHostPort(ip, port), nil
}

// HandlerRef is the caller-held weak reference to a result handler.
// Dropping it before delivery cancels the callback. A ref delivers at
// most once.
type HandlerRef struct {
	mu sync.Mutex
	h  api.ResultHandler
}

var _ api.ResultRef = (*HandlerRef)(nil)

// NewHandlerRef wraps h in a droppable reference.
func NewHandlerRef(h api.ResultHandler) *HandlerRef {
	return &HandlerRef{h: h}
}

// Drop detaches the handler; a later Deliver is skipped.
func (r *HandlerRef) Drop() {
	r.mu.Lock()
	r.h = nil
	r.mu.Unlock()
}

// Deliver hands the result to the handler unless it was dropped.
func (r *HandlerRef) Deliver(res api.ResolveResult) bool {
	r.mu.Lock()
	h := r.h
	r.h = nil
	r.mu.Unlock()
	if h == nil {
		return false
	}
	h.HandleResult(res)
	return true
}
