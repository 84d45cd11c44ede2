//go:build linux || darwin

package redis

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// probeSocket peeks one byte without blocking.
// ok is false when the socket could not be probed.
func probeSocket(sc syscall.Conn) (closed bool, ok bool) {
	raw, err := sc.SyscallConn()
	if err != nil {
		return false, false
	}

	var buf [1]byte
	var n int
	var recvErr error
	err = raw.Read(func(fd uintptr) bool {
		n, _, recvErr = unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		// never wait for readability
		return true
	})
	if err != nil {
		return true, true
	}

	switch {
	case errors.Is(recvErr, unix.EAGAIN), errors.Is(recvErr, unix.EWOULDBLOCK):
		return false, true
	case recvErr != nil:
		return true, true
	default:
		// n == 0 is an orderly shutdown by the peer
		return n == 0, true
	}
}
