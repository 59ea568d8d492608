// File: thread/sockopt_other.go
//go:build !linux

// Package thread: portable socket tuning fallback.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package thread

import "net"

// applyTCPOptions applies the thread's TCP tuning to a freshly
// established socket. Non-TCP sockets are left untouched.
func applyTCPOptions(conn net.Conn, noDelay bool) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(noDelay)
	}
}
