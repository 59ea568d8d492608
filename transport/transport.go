// File: transport/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The dispatcher facade. Holds the shared resolver handle and a fixed,
// ordered list of worker threads. Endpoint operations forward to the
// worker chosen by the selector; tuning and lifecycle operations visit
// every worker in index order; component operations route through the
// component's owner back-reference.
//
// Caller ordering contract for teardown: ShutDown(true), WaitFinished,
// then Release. Release blocks until every pending resolution has been
// delivered or dropped; it does not shut workers down itself.

package transport

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/momentics/hioload-transport/api"
	"github.com/momentics/hioload-transport/thread"
)

// Transport multiplexes a pool of event-loop worker threads behind a
// single facade.
type Transport struct {
	resolver api.Resolver
	threads  []api.TransportThread
	log      *zap.Logger
}

// New constructs a dispatcher over numThreads workers sharing resolver.
// Workers are constructed eagerly and do not run until Start. Panics if
// resolver is nil or numThreads < 1.
func New(resolver api.Resolver, numThreads int, opts ...Option) *Transport {
	if resolver == nil {
		panic("transport: nil resolver")
	}
	if numThreads < 1 {
		panic("transport: numThreads must be >= 1")
	}
	o := &options{
		cfg: DefaultConfig(),
		log: zap.NewNop(),
		clk: clock.New(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.factory == nil {
		o.factory = func(idx int) api.TransportThread {
			return thread.New(resolver,
				thread.WithLogger(o.log.Named(fmt.Sprintf("thread-%d", idx))),
				thread.WithClock(o.clk))
		}
	}

	t := &Transport{
		resolver: resolver,
		threads:  make([]api.TransportThread, 0, numThreads),
		log:      o.log,
	}
	for i := 0; i < numThreads; i++ {
		t.threads = append(t.threads, o.factory(i))
	}

	t.SetIOCTimeOut(o.cfg.IOCTimeout)
	t.SetMaxInputBufferSize(o.cfg.MaxInputBufferSize)
	t.SetMaxOutputBufferSize(o.cfg.MaxOutputBufferSize)
	t.SetDirectWrite(o.cfg.DirectWrite)
	t.SetTCPNoDelay(o.cfg.TCPNoDelay)
	t.SetLogStats(o.cfg.LogStats)
	return t
}

// NumThreads returns the size of the worker pool.
func (t *Transport) NumThreads() int { return len(t.threads) }

// selectThread picks the worker for a shard key.
func (t *Transport) selectThread(key []byte) api.TransportThread {
	return t.threads[selectIndex(key, len(t.threads))]
}

// Listen creates a listening connector for spec on the worker selected
// for it. The worker's error, if any, is propagated untranslated.
func (t *Transport) Listen(spec string, streamer api.PacketStreamer, adapter api.ServerAdapter) (api.Connector, error) {
	return t.selectThread([]byte(spec)).Listen(spec, streamer, adapter)
}

// Connect creates an outbound connection for spec on the worker
// selected for it. The worker's error, if any, is propagated
// untranslated.
func (t *Transport) Connect(spec string, streamer api.PacketStreamer, adminHandler api.PacketHandler,
	adminCtx api.Context, adapter api.ServerAdapter, connCtx api.Context) (api.Connection, error) {
	return t.selectThread([]byte(spec)).Connect(spec, streamer, adminHandler, adminCtx, adapter, connCtx)
}

// ResolveAsync forwards a resolution request to the shared resolver.
// The ref is held weakly: dropping it cancels delivery.
func (t *Transport) ResolveAsync(spec string, ref api.ResultRef) {
	t.resolver.ResolveAsync(spec, ref)
}

// NumIOComponents returns the sum of every worker's live component
// count. The result is a snapshot; counts may reflect different
// instants per worker.
func (t *Transport) NumIOComponents() int {
	total := 0
	for _, th := range t.threads {
		total += th.NumIOComponents()
	}
	return total
}

// SetIOCTimeOut propagates the component idle timeout to every worker.
func (t *Transport) SetIOCTimeOut(d time.Duration) {
	for _, th := range t.threads {
		th.SetIOCTimeOut(d)
	}
}

// SetMaxInputBufferSize propagates the input buffer cap to every worker.
func (t *Transport) SetMaxInputBufferSize(bytes int) {
	for _, th := range t.threads {
		th.SetMaxInputBufferSize(bytes)
	}
}

// SetMaxOutputBufferSize propagates the output queue cap to every worker.
func (t *Transport) SetMaxOutputBufferSize(bytes int) {
	for _, th := range t.threads {
		th.SetMaxOutputBufferSize(bytes)
	}
}

// SetDirectWrite propagates the direct-write flag to every worker.
func (t *Transport) SetDirectWrite(enabled bool) {
	for _, th := range t.threads {
		th.SetDirectWrite(enabled)
	}
}

// SetTCPNoDelay propagates the Nagle setting to every worker.
func (t *Transport) SetTCPNoDelay(enabled bool) {
	for _, th := range t.threads {
		th.SetTCPNoDelay(enabled)
	}
}

// SetLogStats propagates the stats-logging flag to every worker.
func (t *Transport) SetLogStats(enabled bool) {
	for _, th := range t.threads {
		th.SetLogStats(enabled)
	}
}

// Sync drains every worker in index order. It returns only after each
// worker has processed everything enqueued before its marker. Sync does
// not serialize against concurrent callers.
func (t *Transport) Sync() {
	for _, th := range t.threads {
		th.Sync()
	}
}

// Scheduler returns the timer scheduler of a selector-chosen worker.
// Callers must not assume a particular worker.
func (t *Transport) Scheduler() api.Scheduler {
	return t.selectThread(nil).Scheduler()
}

// Execute enqueues exe on a selector-chosen worker. Reports false if
// that worker has shut down.
func (t *Transport) Execute(exe api.Executable) bool {
	return t.selectThread(nil).Execute(exe)
}

// Add registers comp with its owning worker.
func (t *Transport) Add(comp api.IOComponent) { comp.Owner().Add(comp) }

// EnableRead enables inbound processing on comp via its owning worker.
func (t *Transport) EnableRead(comp api.IOComponent) { comp.Owner().EnableRead(comp) }

// DisableRead disables inbound processing on comp via its owning worker.
func (t *Transport) DisableRead(comp api.IOComponent) { comp.Owner().DisableRead(comp) }

// EnableWrite enables outbound processing on comp via its owning worker.
func (t *Transport) EnableWrite(comp api.IOComponent) { comp.Owner().EnableWrite(comp) }

// DisableWrite disables outbound processing on comp via its owning worker.
func (t *Transport) DisableWrite(comp api.IOComponent) { comp.Owner().DisableWrite(comp) }

// Close releases comp via its owning worker.
func (t *Transport) Close(comp api.IOComponent) { comp.Owner().Close(comp) }

// Start launches every worker on pool. Every worker is attempted even
// after a failure; the returned error aggregates per-worker failures
// and is nil only when all workers started.
func (t *Transport) Start(pool api.ThreadPool) error {
	var err error
	for i, th := range t.threads {
		if e := th.Start(pool); e != nil {
			err = multierr.Append(err, fmt.Errorf("thread %d: %w", i, e))
		}
	}
	return err
}

// ShutDown signals every worker to terminate. With wait, each call
// blocks until its worker has quiesced.
func (t *Transport) ShutDown(wait bool) {
	for _, th := range t.threads {
		th.ShutDown(wait)
	}
}

// WaitFinished joins every worker.
func (t *Transport) WaitFinished() {
	for _, th := range t.threads {
		th.WaitFinished()
	}
}

// Release ends the facade's lifetime: it blocks until every pending
// resolution has been delivered or dropped. Workers must already have
// been shut down by the caller; the facade does not force that here.
// The full teardown order is ShutDown(true), WaitFinished, Release.
func (t *Transport) Release() {
	t.resolver.WaitPending()
}
