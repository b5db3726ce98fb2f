//go:build !windows

package p2p

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// setSocketReuseAddr sets SO_REUSEADDR so a restarted node can rebind its
// port while old connections sit in TIME_WAIT.
// SO_REUSEPORT is left off on purpose: two nodes must never share one port.
func setSocketReuseAddr(network, address string, c syscall.RawConn) error {
	var setSockOptErr error
	err := c.Control(func(fd uintptr) {
		setSockOptErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return setSockOptErr
}

// isBindError tells a failed bind() apart from a failed listen().
// the net package reports both as a "listen" OpError, so look at the errno.
func isBindError(err error) bool {
	return errors.Is(err, unix.EADDRINUSE) ||
		errors.Is(err, unix.EADDRNOTAVAIL) ||
		errors.Is(err, unix.EACCES)
}
