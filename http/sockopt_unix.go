//go:build unix

package http

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlSocket allows quick rebinding and makes IPv6 wildcard sockets dual-stack.
func controlSocket(network, _ string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if opErr == nil && network == "tcp6" {
			opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
		}
	})
	if err != nil {
		return err
	}
	return opErr
}
