package p2p

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
)

// ============ TCP Transport options ============

type TCPTransportOptions struct {
	// ListenPort is the local port to bind on all interfaces. 0 picks a free one.
	ListenPort int
	// ReuseAddr sets SO_REUSEADDR on the listening socket.
	ReuseAddr bool
}

// ErrBind is returned (wrapped) when the port could not be bound.
// Anything else that goes wrong while setting up the listener is returned as is.
var ErrBind = errors.New("bind failed")

// Listen creates the listening socket for the chat node.
func Listen(opts TCPTransportOptions) (net.Listener, error) {
	lc := net.ListenConfig{}
	if opts.ReuseAddr {
		lc.Control = func(network, address string, c syscall.RawConn) error {
			return setSocketReuseAddr(network, address, c)
		}
	}
	addr := net.JoinHostPort("", strconv.Itoa(opts.ListenPort))
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		if isBindError(err) {
			return nil, fmt.Errorf("%w: port %d: %v", ErrBind, opts.ListenPort, err)
		}
		return nil, err
	}
	return ln, nil
}

// Dial opens an outbound connection. No timeout is set: it blocks until the
// OS connect call gives up or succeeds.
func Dial(ip string, port int) (net.Conn, error) {
	return net.Dial("tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
}

// ListenPort extracts the bound port from a listener.
func ListenPort(ln net.Listener) int {
	_, port, err := SplitAddr(ln.Addr())
	if err != nil {
		return 0
	}
	return port
}
