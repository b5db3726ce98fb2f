//go:build windows
// +build windows

package p2p

import (
	"errors"
	"syscall"

	"golang.org/x/sys/windows"
)

// setSocketReuseAddr sets SO_REUSEADDR on the listening socket.
// This is the Windows-specific implementation
func setSocketReuseAddr(network, address string, c syscall.RawConn) error {
	var setSockOptErr error
	err := c.Control(func(fd uintptr) {
		setSockOptErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return setSockOptErr
}

// isBindError reports whether err came out of bind() rather than listen().
func isBindError(err error) bool {
	return errors.Is(err, windows.WSAEADDRINUSE) ||
		errors.Is(err, windows.WSAEADDRNOTAVAIL) ||
		errors.Is(err, windows.WSAEACCES)
}
