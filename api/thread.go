// File: api/thread.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The worker contract. A TransportThread is one independent event-loop
// worker owning a slice of I/O components. All listed operations are
// safe to invoke from any goroutine; work is enqueued to the loop or
// applied through atomics. The single-thread-mode hooks at the bottom
// drive the loop in the caller's goroutine instead of starting one.

package api

import "time"

// TransportThread is a single event-loop worker.
type TransportThread interface {
	// Listen creates a listening connector for spec on this thread.
	Listen(spec string, streamer PacketStreamer, adapter ServerAdapter) (Connector, error)

	// Connect creates an outbound connection for spec on this thread.
	// Packets with no channel handler go to adminHandler with adminCtx;
	// connCtx is delivered with channel packets.
	Connect(spec string, streamer PacketStreamer, adminHandler PacketHandler,
		adminCtx Context, adapter ServerAdapter, connCtx Context) (Connection, error)

	// NumIOComponents returns the number of live components on this thread.
	NumIOComponents() int

	// Tuning. Expected before Start or at quiescent moments; values are
	// picked up by components at creation and I/O time.
	SetIOCTimeOut(d time.Duration)
	SetMaxInputBufferSize(bytes int)
	SetMaxOutputBufferSize(bytes int)
	SetDirectWrite(enabled bool)
	SetTCPNoDelay(enabled bool)
	SetLogStats(enabled bool)

	// Sync blocks until the loop has processed everything enqueued
	// before the call. Returns immediately if the thread has finished.
	Sync()

	// Scheduler returns this thread's timer scheduler.
	Scheduler() Scheduler

	// Execute enqueues exe to the loop. Reports false once the thread
	// has begun shutting down.
	Execute(exe Executable) bool

	// Component routing. Each operation is applied to a component this
	// thread owns.
	Add(comp IOComponent)
	EnableRead(comp IOComponent)
	DisableRead(comp IOComponent)
	EnableWrite(comp IOComponent)
	DisableWrite(comp IOComponent)
	Close(comp IOComponent)

	// Lifecycle. Start hands the loop to the pool; ShutDown flags
	// termination and, with wait, blocks until the loop has quiesced;
	// WaitFinished joins the loop.
	Start(pool ThreadPool) error
	ShutDown(wait bool)
	WaitFinished()

	// Single-thread mode. InitEventLoop arms the loop in the calling
	// goroutine; EventLoopIteration runs one iteration and reports
	// whether the loop should continue; Main is InitEventLoop followed
	// by iteration until false.
	TimeSampler() TimeSampler
	InitEventLoop() bool
	EventLoopIteration() bool
	Main()
}
