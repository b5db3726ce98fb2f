package p2p

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
)

// MaxBufferSize is the default size of a single read from a peer.
// there is no framing on the wire, so one read == one displayed message.
const MaxBufferSize = 1024

// ================== Peer Link ==========================

// PeerLink is one established TCP connection to another chat node.
// The remote address is fixed when the link is created and never changes.
type PeerLink struct {
	net.Conn
	ip   string
	port int
	// isOutbound := true if we dialed (connect command)
	// isOutbound := false if the acceptor handed it to us
	isOutbound bool

	closeOnce sync.Once
	closeErr  error
}

// NewPeerLink wraps conn. ip/port is what the operator will see in `list`;
// for inbound links it's the far end's address, for outbound links it's
// whatever the operator typed into `connect`.
func NewPeerLink(conn net.Conn, ip string, port int, isOutbound bool) *PeerLink {
	return &PeerLink{
		Conn:       conn,
		ip:         ip,
		port:       port,
		isOutbound: isOutbound,
	}
}

// NewPeerLinkFromConn builds a link keyed by conn.RemoteAddr().
func NewPeerLinkFromConn(conn net.Conn, isOutbound bool) (*PeerLink, error) {
	ip, port, err := SplitAddr(conn.RemoteAddr())
	if err != nil {
		return nil, err
	}
	return NewPeerLink(conn, ip, port, isOutbound), nil
}

func (p *PeerLink) IP() string       { return p.ip }
func (p *PeerLink) Port() int        { return p.port }
func (p *PeerLink) IsOutbound() bool { return p.isOutbound }

// Addr is "ip:port" of the far end, as the operator knows it.
func (p *PeerLink) Addr() string {
	return net.JoinHostPort(p.ip, strconv.Itoa(p.port))
}

func (p *PeerLink) String() string {
	return p.Addr()
}

// Send writes data with a single Write call. A short write is reported but
// nothing is retried.
func (p *PeerLink) Send(data []byte) error {
	n, err := p.Conn.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return io.ErrShortWrite
	}
	return nil
}

// Close closes the underlying connection once. Both the receiver teardown
// and an operator `terminate` can end up here for the same link, so every
// call after the first just returns the first result.
func (p *PeerLink) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.Conn.Close()
	})
	return p.closeErr
}

// IsClosedErr reports whether err is what a blocked Read/Write returns after
// the connection was closed from our side.
func IsClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// SplitAddr pulls (ip, port) out of a net.Addr. TCP addrs are read directly,
// everything else goes through the string form.
func SplitAddr(addr net.Addr) (string, int, error) {
	if addr == nil {
		return "", 0, errors.New("nil address")
	}
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return tcpAddr.IP.String(), tcpAddr.Port, nil
	}
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "", 0, fmt.Errorf("invalid address %q: %w", addr.String(), err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", addr.String(), err)
	}
	return host, port, nil
}
