//go:build !linux && !darwin

package redis

import "syscall"

func probeSocket(syscall.Conn) (closed bool, ok bool) {
	return false, false
}
