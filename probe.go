package redis

import (
	"bufio"
	"errors"
	"net"
	"os"
	"syscall"
	"time"
)

const probeDeadline = time.Millisecond

// peerClosed reports whether the peer closed the transport, without consuming
// any pending data.
//
// Buffered bytes mean the peer is alive. Sockets are probed with a
// non-blocking peek when the platform supports it, other transports with a
// very short read deadline.
func peerClosed(conn net.Conn, r *bufio.Reader) bool {
	if r.Buffered() > 0 {
		return false
	}

	if sc, ok := conn.(syscall.Conn); ok {
		if closed, ok := probeSocket(sc); ok {
			return closed
		}
	}

	return probeWithDeadline(conn, r)
}

func probeWithDeadline(conn net.Conn, r *bufio.Reader) bool {
	if err := conn.SetReadDeadline(time.Now().Add(probeDeadline)); err != nil {
		return true
	}
	defer conn.SetReadDeadline(time.Time{})

	_, err := r.Peek(1)
	if err == nil {
		return false
	}
	return !errors.Is(err, os.ErrDeadlineExceeded)
}
