package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ankesh2004/p2p-chat/internal/console"
	"github.com/Ankesh2004/p2p-chat/internal/registry"
	"github.com/Ankesh2004/p2p-chat/pkg/p2p"
)

var (
	ErrBindFailure    = errors.New("bind failed")
	ErrListenFailure  = errors.New("listen failed")
	ErrConnectFailure = errors.New("connect failed")
	ErrSendFailure    = errors.New("send failed")

	// ErrInvalidIndex is the registry's error, re-exported for callers that
	// only talk to the server.
	ErrInvalidIndex = registry.ErrInvalidIndex
)

type ChatServerOptions struct {
	ListenPort    int
	MaxBufferSize int
	ReuseAddr     bool

	Registry *registry.Registry
	Console  *console.Console
	Logger   *zap.Logger

	// optional hooks, called from the acceptor/connector and receiver goroutines
	OnPeer       func(link *p2p.PeerLink, index int)
	OnMessage    func(link *p2p.PeerLink, payload []byte)
	OnDisconnect func(link *p2p.PeerLink)
}

// ChatServer is the connection lifecycle manager of a chat node: it owns the
// listener, runs the acceptor, dials outbound peers and runs one receiver
// goroutine per live link.
type ChatServer struct {
	ChatServerOptions

	log         *zap.Logger
	listener    net.Listener
	port        int
	quitChannel chan struct{}
	stopOnce    sync.Once

	// sleep is the acceptor's backoff, swapped out in tests
	sleep func(time.Duration)
}

func NewChatServer(options ChatServerOptions) *ChatServer {
	if options.MaxBufferSize <= 0 {
		options.MaxBufferSize = p2p.MaxBufferSize
	}
	if options.Registry == nil {
		options.Registry = registry.New()
	}
	if options.Console == nil {
		options.Console = console.New(console.Options{})
	}
	if options.Logger == nil {
		options.Logger = zap.L()
	}
	return &ChatServer{
		ChatServerOptions: options,
		log:               options.Logger.Named("server"),
		quitChannel:       make(chan struct{}),
		sleep:             time.Sleep,
	}
}

// -------- Listening / Acceptor --------

// StartListening binds the listening socket and starts the acceptor.
// Errors wrap ErrBindFailure or ErrListenFailure; the node can't do anything
// useful without a listener so callers should treat them as fatal.
func (s *ChatServer) StartListening() error {
	if s.listener != nil {
		return fmt.Errorf("%w: already listening on %d", ErrListenFailure, s.port)
	}
	ln, err := p2p.Listen(p2p.TCPTransportOptions{
		ListenPort: s.ListenPort,
		ReuseAddr:  s.ReuseAddr,
	})
	if err != nil {
		if errors.Is(err, p2p.ErrBind) {
			return fmt.Errorf("%w: %w", ErrBindFailure, err)
		}
		return fmt.Errorf("%w: %w", ErrListenFailure, err)
	}
	s.serve(ln)
	return nil
}

// serve takes ownership of ln and runs the acceptor on it.
func (s *ChatServer) serve(ln net.Listener) {
	s.listener = ln
	s.port = p2p.ListenPort(ln)
	s.log = s.log.With(zap.Int("node_port", s.port))

	go s.acceptLoop()
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))
}

// MyPort is the port actually bound, fixed once StartListening returns.
func (s *ChatServer) MyPort() int {
	return s.port
}

func (s *ChatServer) acceptLoop() {
	var tempDelay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Shutdown closed the listener, nothing more to accept
			if errors.Is(err, net.ErrClosed) {
				s.log.Debug("acceptor stopped")
				return
			}
			s.Console.Errorf("Failed to accept connection.")
			s.log.Warn("accept failed", zap.Error(err))

			// back off a little so a persistent error (EMFILE) doesn't spin
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else if tempDelay *= 2; tempDelay > time.Second {
				tempDelay = time.Second
			}
			s.sleep(tempDelay)
			continue
		}
		tempDelay = 0
		s.handleInbound(conn)
	}
}

func (s *ChatServer) handleInbound(conn net.Conn) {
	link, err := p2p.NewPeerLinkFromConn(conn, false)
	if err != nil {
		s.log.Warn("dropping inbound connection", zap.Error(err))
		conn.Close()
		return
	}
	index, ok := s.register(link)
	if !ok {
		return
	}

	s.Console.Notify(fmt.Sprintf("New connection from %s", link.Addr()))
	s.log.Info("new inbound peer", zap.String("peer", link.Addr()), zap.Int("index", index))

	go s.readLoop(link)
}

// -------- Connector --------

// Connect dials ip:port, registers the link and starts its receiver.
// It blocks until the OS gives up or succeeds; there is no retry.
func (s *ChatServer) Connect(ip string, port int) error {
	addr := net.JoinHostPort(ip, fmt.Sprint(port))

	conn, err := p2p.Dial(ip, port)
	if err != nil {
		s.Console.Errorf("Connection to %s:%d failed.", ip, port)
		s.log.Warn("connect failed", zap.String("peer", addr), zap.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrConnectFailure, addr, err)
	}

	link := p2p.NewPeerLink(conn, ip, port, true)
	index, ok := s.register(link)
	if !ok {
		return fmt.Errorf("%w: %s: node is shutting down", ErrConnectFailure, addr)
	}

	s.Console.Printf("Connected to %s:%d", ip, port)
	s.log.Info("new outbound peer", zap.String("peer", addr), zap.Int("index", index))

	go s.readLoop(link)
	return nil
}

// register adds link to the registry unless Shutdown already ran, in which
// case the link is closed and ok is false.
func (s *ChatServer) register(link *p2p.PeerLink) (int, bool) {
	index := s.Registry.Add(link)
	// Shutdown closes quitChannel before sweeping the registry, so a link
	// added after the sweep is caught here
	if s.isStopped() {
		s.Registry.RemoveLink(link)
		return 0, false
	}
	if s.OnPeer != nil {
		s.OnPeer(link, index)
	}
	return index, true
}

// -------- Receiver --------

// readLoop reads from link until EOF or error, then tears the link down.
// It is the only place a link dies on its own; nothing reconnects it.
func (s *ChatServer) readLoop(link *p2p.PeerLink) {
	var readErr error
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("receiver panicked", zap.String("peer", link.Addr()), zap.Any("panic", r))
			readErr = fmt.Errorf("receiver panic: %v", r)
		}
		s.teardown(link, readErr)
	}()

	buf := make([]byte, s.MaxBufferSize)
	for {
		n, err := link.Read(buf)
		if n > 0 {
			payload := make([]byte, n)
			copy(payload, buf[:n])
			s.deliver(link, payload)
		}
		if err != nil {
			readErr = err
			return
		}
	}
}

func (s *ChatServer) deliver(link *p2p.PeerLink, payload []byte) {
	s.Console.Notify(
		fmt.Sprintf("Message received from %s", link.Addr()),
		fmt.Sprintf("Message: %s", payload),
	)
	s.log.Debug("message received", zap.String("peer", link.Addr()), zap.Int("bytes", len(payload)))
	if s.OnMessage != nil {
		s.OnMessage(link, payload)
	}
}

func (s *ChatServer) teardown(link *p2p.PeerLink, readErr error) {
	removed := s.Registry.RemoveLink(link)
	link.Close() //nolint:errcheck

	if !s.isStopped() {
		s.Console.Notify(fmt.Sprintf("Connection with %s closed.", link.Addr()))
	}

	fields := []zap.Field{zap.String("peer", link.Addr()), zap.Bool("removed_by_receiver", removed)}
	switch {
	case readErr == nil, errors.Is(readErr, io.EOF):
		s.log.Info("peer disconnected", fields...)
	case p2p.IsClosedErr(readErr):
		s.log.Info("link closed locally", fields...)
	default:
		s.log.Warn("peer read failed", append(fields, zap.Error(readErr))...)
	}

	if s.OnDisconnect != nil {
		s.OnDisconnect(link)
	}
}

// -------- Operator commands --------

func (s *ChatServer) List() []registry.Entry {
	return s.Registry.Snapshot()
}

// Terminate closes and forgets the link at display index.
// Later links move up by one.
func (s *ChatServer) Terminate(index int) error {
	if err := s.Registry.RemoveByIndex(index); err != nil {
		return err
	}
	s.log.Info("link terminated", zap.Int("index", index))
	return nil
}

// Send writes msg to the link at display index with a single write.
// A failed write is reported but the link stays registered; its receiver
// will notice a broken connection on its own.
func (s *ChatServer) Send(index int, msg []byte) error {
	link, err := s.Registry.Get(index)
	if err != nil {
		return err
	}
	if err := link.Send(msg); err != nil {
		s.log.Warn("send failed", zap.String("peer", link.Addr()), zap.Int("index", index), zap.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrSendFailure, link.Addr(), err)
	}
	s.log.Debug("message sent", zap.String("peer", link.Addr()), zap.Int("bytes", len(msg)))
	return nil
}

// Shutdown stops the acceptor and closes every live link. It does not wait
// for receivers: closing their connections is what makes them exit.
func (s *ChatServer) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.quitChannel)
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				s.log.Warn("closing listener", zap.Error(err))
			}
		}
		n := s.Registry.CloseAll()
		s.log.Info("shutdown", zap.Int("links_closed", n))
	})
}

func (s *ChatServer) isStopped() bool {
	select {
	case <-s.quitChannel:
		return true
	default:
		return false
	}
}
