// File: pool/threadpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package pool provides the bounded goroutine pool that worker threads
// run their main loops on. Capacity is fixed at construction; Run
// rejects work beyond it instead of queueing, since a worker loop
// occupies its slot for the pool's whole lifetime.

package pool

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-transport/api"
)

// ThreadPool runs long-lived functions on pooled goroutines. It
// satisfies api.ThreadPool.
type ThreadPool struct {
	mu       sync.Mutex
	group    errgroup.Group
	capacity int
	running  int
	closed   bool
}

var _ api.ThreadPool = (*ThreadPool)(nil)

// New constructs a pool. capacity <= 0 means unbounded.
func New(capacity int) *ThreadPool {
	return &ThreadPool{capacity: capacity}
}

// Run launches fn on a pool goroutine. Returns api.ErrPoolExhausted at
// capacity and api.ErrPoolClosed after Close.
func (p *ThreadPool) Run(fn func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return api.ErrPoolClosed
	}
	if p.capacity > 0 && p.running >= p.capacity {
		p.mu.Unlock()
		return api.ErrPoolExhausted
	}
	p.running++
	p.mu.Unlock()

	p.group.Go(func() error {
		defer func() {
			p.mu.Lock()
			p.running--
			p.mu.Unlock()
		}()
		fn()
		return nil
	})
	return nil
}

// NumRunning returns the number of occupied slots.
func (p *ThreadPool) NumRunning() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Close rejects further Run calls. Already-running functions are
// unaffected; use Join to wait for them.
func (p *ThreadPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Join blocks until every launched function has returned.
func (p *ThreadPool) Join() {
	_ = p.group.Wait()
}
