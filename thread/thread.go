// File: thread/thread.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The worker thread: command queue, event loop, lifecycle, tuning and
// the I/O component registry. The command queue is an unbounded FIFO
// guarded by a mutex with a single-slot wakeup channel; the loop drains
// it in batches between timer deadlines.

package thread

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/hioload-transport/api"
)

const (
	// maxIdleWait bounds one loop iteration when no timer is armed.
	maxIdleWait = 100 * time.Millisecond

	// statsInterval is how often the loop logs stats when enabled.
	statsInterval = 5 * time.Second
)

// Thread is one event-loop worker. It satisfies api.TransportThread.
type Thread struct {
	log      *zap.Logger
	clk      clock.Clock
	resolver api.Resolver

	mu        sync.Mutex
	cmds      *queue.Queue // of api.Executable
	accepting bool         // false once ShutDown has been called
	started   bool
	shutdown  bool
	finished  bool

	wakeCh      chan struct{}
	doneCh      chan struct{}
	doneOnce    sync.Once
	cleanupOnce sync.Once

	// loopMu is held for the whole of one loop iteration. ShutDown
	// with wait acquires it to quiesce the thread inline, which also
	// covers loops driven cooperatively in the caller's goroutine.
	loopMu sync.Mutex

	sched *scheduler

	compsMu sync.Mutex
	comps   map[api.IOComponent]struct{}

	// tuning, read by components at creation and I/O time
	iocTimeout  atomic.Int64 // nanoseconds
	maxInput    atomic.Int64
	maxOutput   atomic.Int64
	directWrite atomic.Bool
	tcpNoDelay  atomic.Bool
	logStats    atomic.Bool

	// stats
	iterations atomic.Int64
	executed   atomic.Int64
	lastStats  time.Time // loop goroutine only
}

var _ api.TransportThread = (*Thread)(nil)

// Option customizes thread construction.
type Option func(*Thread)

// WithLogger sets the thread's logger.
func WithLogger(log *zap.Logger) Option {
	return func(t *Thread) { t.log = log }
}

// WithClock sets the clock used for timers, deadlines and stats.
func WithClock(clk clock.Clock) Option {
	return func(t *Thread) { t.clk = clk }
}

// New constructs an idle worker sharing resolver. The loop does not run
// until Start or InitEventLoop.
func New(resolver api.Resolver, opts ...Option) *Thread {
	t := &Thread{
		log:       zap.NewNop(),
		clk:       clock.New(),
		resolver:  resolver,
		cmds:      queue.New(),
		accepting: true,
		wakeCh:    make(chan struct{}, 1),
		doneCh:    make(chan struct{}),
		comps:     make(map[api.IOComponent]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.sched = newScheduler(t.clk, t.wake)
	return t
}

func (t *Thread) wake() {
	select {
	case t.wakeCh <- struct{}{}:
	default:
	}
}

// Execute enqueues exe to the loop. Reports false once the thread has
// begun shutting down.
func (t *Thread) Execute(exe api.Executable) bool {
	t.mu.Lock()
	if !t.accepting {
		t.mu.Unlock()
		return false
	}
	t.cmds.Add(exe)
	t.mu.Unlock()
	t.wake()
	return true
}

// Sync blocks until the loop has processed everything enqueued before
// the call. Returns immediately if the thread has finished.
func (t *Thread) Sync() {
	done := make(chan struct{})
	if !t.Execute(api.ExecutableFunc(func() { close(done) })) {
		return
	}
	<-done
}

// Scheduler returns this thread's timer scheduler.
func (t *Thread) Scheduler() api.Scheduler { return t.sched }

// TimeSampler returns the clock the loop samples time from.
func (t *Thread) TimeSampler() api.TimeSampler { return t.clk }

// InitEventLoop arms the loop in the calling goroutine. Reports false
// if the thread was already started or has finished.
func (t *Thread) InitEventLoop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.finished {
		return false
	}
	t.started = true
	t.lastStats = t.clk.Now()
	return true
}

// EventLoopIteration runs one iteration: wait for work or a timer
// deadline, drain the command queue, fire due timers. Reports false
// when the loop has terminated.
func (t *Thread) EventLoopIteration() bool {
	t.loopMu.Lock()
	defer t.loopMu.Unlock()

	t.mu.Lock()
	finished, down, pending := t.finished, t.shutdown, t.cmds.Length() > 0
	t.mu.Unlock()
	if finished {
		return false
	}
	if down {
		t.cleanup()
		return false
	}

	if !pending {
		if wait := t.sched.untilNext(maxIdleWait); wait > 0 {
			timer := t.clk.Timer(wait)
			select {
			case <-t.wakeCh:
			case <-timer.C:
			}
			timer.Stop()
		}
	}

	t.runCommands()
	t.sched.fireDue()
	t.iterations.Add(1)
	t.maybeLogStats()
	return true
}

// Main runs the loop to completion in the calling goroutine.
func (t *Thread) Main() {
	if !t.InitEventLoop() {
		t.log.Warn("event loop refused to arm")
		return
	}
	for t.EventLoopIteration() {
	}
}

// Start hands Main to the pool.
func (t *Thread) Start(pool api.ThreadPool) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return api.ErrThreadStarted
	}
	if t.finished || t.shutdown {
		t.mu.Unlock()
		return api.ErrTransportShutDown
	}
	t.mu.Unlock()
	if err := pool.Run(t.Main); err != nil {
		return fmt.Errorf("start transport thread: %w", err)
	}
	return nil
}

// ShutDown flags termination and wakes the loop. With wait it blocks
// until the loop has quiesced, excluding the loop and flushing inline
// if necessary; that also covers loops driven cooperatively in the
// caller's goroutine. Must not be called with wait from a callback
// running on the loop itself. On a thread whose loop never ran, the
// remaining queue is flushed and components are closed inline.
func (t *Thread) ShutDown(wait bool) {
	t.mu.Lock()
	t.accepting = false
	already := t.shutdown
	t.shutdown = true
	started := t.started
	t.mu.Unlock()
	if !already && !started {
		t.cleanup()
	}
	t.wake()
	if wait {
		t.loopMu.Lock()
		t.cleanup()
		t.loopMu.Unlock()
		t.WaitFinished()
	}
}

// WaitFinished joins the loop.
func (t *Thread) WaitFinished() { <-t.doneCh }

// runCommands drains the queue and executes everything in FIFO order.
func (t *Thread) runCommands() {
	for {
		t.mu.Lock()
		if t.cmds.Length() == 0 {
			t.mu.Unlock()
			return
		}
		exe := t.cmds.Remove().(api.Executable)
		t.mu.Unlock()
		exe.Execute()
		t.executed.Add(1)
	}
}

// cleanup quiesces the thread: flush commands enqueued before shutdown,
// close every remaining component, drop pending timers.
func (t *Thread) cleanup() {
	t.cleanupOnce.Do(func() {
		t.runCommands()
		t.compsMu.Lock()
		comps := make([]api.IOComponent, 0, len(t.comps))
		for comp := range t.comps {
			comps = append(comps, comp)
		}
		t.compsMu.Unlock()
		for _, comp := range comps {
			_ = comp.Close()
		}
		t.sched.drain()
		t.mu.Lock()
		t.finished = true
		t.mu.Unlock()
		t.doneOnce.Do(func() { close(t.doneCh) })
	})
}

func (t *Thread) maybeLogStats() {
	if !t.logStats.Load() {
		return
	}
	now := t.clk.Now()
	if now.Sub(t.lastStats) < statsInterval {
		return
	}
	t.lastStats = now
	t.log.Info("event loop stats",
		zap.Int64("iterations", t.iterations.Load()),
		zap.Int64("executed", t.executed.Load()),
		zap.Int("io_components", t.NumIOComponents()))
}

// register adds a live component to the registry.
func (t *Thread) register(comp api.IOComponent) {
	t.compsMu.Lock()
	t.comps[comp] = struct{}{}
	t.compsMu.Unlock()
}

// deregister removes a component; called from the component's Close.
func (t *Thread) deregister(comp api.IOComponent) {
	t.compsMu.Lock()
	delete(t.comps, comp)
	t.compsMu.Unlock()
}

// NumIOComponents returns the number of live components on this thread.
func (t *Thread) NumIOComponents() int {
	t.compsMu.Lock()
	defer t.compsMu.Unlock()
	return len(t.comps)
}

// Add registers comp with this thread. Used by the dispatcher's
// component router; components created via Listen and Connect are
// registered by their constructor.
func (t *Thread) Add(comp api.IOComponent) { t.register(comp) }

// EnableRead enables inbound processing on comp from the loop.
func (t *Thread) EnableRead(comp api.IOComponent) {
	t.componentOp(func() { comp.SetReadEnabled(true) })
}

// DisableRead disables inbound processing on comp from the loop.
func (t *Thread) DisableRead(comp api.IOComponent) {
	t.componentOp(func() { comp.SetReadEnabled(false) })
}

// EnableWrite enables outbound processing on comp from the loop.
func (t *Thread) EnableWrite(comp api.IOComponent) {
	t.componentOp(func() { comp.SetWriteEnabled(true) })
}

// DisableWrite disables outbound processing on comp from the loop.
func (t *Thread) DisableWrite(comp api.IOComponent) {
	t.componentOp(func() { comp.SetWriteEnabled(false) })
}

// Close releases comp from the loop. A finished thread closes the
// component inline instead.
func (t *Thread) Close(comp api.IOComponent) {
	if !t.Execute(api.ExecutableFunc(func() { _ = comp.Close() })) {
		_ = comp.Close()
	}
}

// componentOp runs op on the loop, preserving FIFO order with other
// work routed to this thread. Ops sent to a finished thread are
// dropped; its components are already closed.
func (t *Thread) componentOp(op func()) {
	t.Execute(api.ExecutableFunc(op))
}

// SetIOCTimeOut sets the component idle timeout; 0 disables it.
func (t *Thread) SetIOCTimeOut(d time.Duration) { t.iocTimeout.Store(int64(d)) }

// SetMaxInputBufferSize caps per-connection input buffering.
func (t *Thread) SetMaxInputBufferSize(bytes int) { t.maxInput.Store(int64(bytes)) }

// SetMaxOutputBufferSize caps per-connection queued output.
func (t *Thread) SetMaxOutputBufferSize(bytes int) { t.maxOutput.Store(int64(bytes)) }

// SetDirectWrite makes connections write inline when possible.
func (t *Thread) SetDirectWrite(enabled bool) { t.directWrite.Store(enabled) }

// SetTCPNoDelay controls Nagle on TCP connections.
func (t *Thread) SetTCPNoDelay(enabled bool) { t.tcpNoDelay.Store(enabled) }

// SetLogStats enables periodic stats logging on the loop.
func (t *Thread) SetLogStats(enabled bool) { t.logStats.Store(enabled) }

func (t *Thread) isAccepting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accepting
}
