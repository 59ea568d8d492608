// File: transport/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Construction-time configuration for the dispatcher. All fields are
// applied to every worker thread during New; the same knobs remain
// reachable afterwards through the facade's broadcast setters.

package transport

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/momentics/hioload-transport/api"
)

// Config holds the initial tuning applied to every worker thread.
type Config struct {
	IOCTimeout          time.Duration // idle timeout for I/O components, 0 disables
	MaxInputBufferSize  int           // per-connection input buffer cap
	MaxOutputBufferSize int           // per-connection output queue cap, in bytes
	DirectWrite         bool          // write inline instead of through the output queue
	TCPNoDelay          bool          // disable Nagle on TCP connections
	LogStats            bool          // periodic per-thread stats logging
}

// DefaultConfig returns the tuning used when none is supplied.
func DefaultConfig() *Config {
	return &Config{
		IOCTimeout:          0,
		MaxInputBufferSize:  64 * 1024,
		MaxOutputBufferSize: 64 * 1024,
		DirectWrite:         false,
		TCPNoDelay:          true,
		LogStats:            false,
	}
}

// Option customizes dispatcher construction.
type Option func(*options)

type options struct {
	cfg     *Config
	log     *zap.Logger
	clk     clock.Clock
	factory func(idx int) api.TransportThread
}

// WithConfig sets the initial tuning broadcast to every worker.
func WithConfig(cfg *Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger handed to worker threads. The default is
// a no-op logger; the dispatcher itself never logs.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithClock sets the clock worker threads sample time from.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clk = clk }
}

// WithThreadFactory replaces the worker constructor. Used by tests to
// observe dispatch; idx is the worker's position in the pool.
func WithThreadFactory(factory func(idx int) api.TransportThread) Option {
	return func(o *options) { o.factory = factory }
}
