// File: thread/sockopt_linux.go
//go:build linux

// Package thread: Linux socket tuning.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// On Linux, low-latency tuning goes through the raw descriptor so
// TCP_QUICKACK can be set alongside TCP_NODELAY.

package thread

import (
	"net"

	"golang.org/x/sys/unix"
)

// applyTCPOptions applies the thread's TCP tuning to a freshly
// established socket. Non-TCP sockets are left untouched.
func applyTCPOptions(conn net.Conn, noDelay bool) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		flag := 0
		if noDelay {
			flag = 1
		}
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, flag)
		if noDelay {
			_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
		}
	})
}
