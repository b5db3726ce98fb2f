package p2p

import (
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerLink_DoubleClose(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	link := NewPeerLink(local, "127.0.0.1", 5000, true)
	first := link.Close()
	assert.NoError(t, first)

	// second close (receiver teardown after terminate) must be harmless
	assert.NotPanics(t, func() {
		assert.Equal(t, first, link.Close())
	})
}

func TestPeerLink_ConcurrentClose(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	link := NewPeerLink(local, "127.0.0.1", 5000, false)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			link.Close() //nolint:errcheck
		}()
	}
	wg.Wait()

	_, err := link.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestPeerLink_CloseUnblocksRead(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	link := NewPeerLink(local, "127.0.0.1", 5000, false)

	done := make(chan error, 1)
	go func() {
		_, err := link.Read(make([]byte, MaxBufferSize))
		done <- err
	}()

	require.NoError(t, link.Close())
	err := <-done
	assert.Error(t, err)
}

func TestPeerLink_Send(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	link := NewPeerLink(local, "10.1.2.3", 7000, true)
	defer link.Close()

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := remote.Read(buf)
		got <- buf[:n]
	}()

	require.NoError(t, link.Send([]byte("hello")))
	assert.Equal(t, []byte("hello"), <-got)
	assert.Equal(t, "10.1.2.3:7000", link.Addr())
	assert.True(t, link.IsOutbound())
}

func TestSplitAddr(t *testing.T) {
	ip, port, err := SplitAddr(&net.TCPAddr{IP: net.ParseIP("192.168.1.7"), Port: 5123})
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.7", ip)
	assert.Equal(t, 5123, port)

	_, _, err = SplitAddr(nil)
	assert.Error(t, err)
}

func TestNewPeerLinkFromConn(t *testing.T) {
	ln, err := Listen(TCPTransportOptions{ListenPort: 0})
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	conn, err := Dial("127.0.0.1", ListenPort(ln))
	require.NoError(t, err)
	defer conn.Close()

	server := <-accepted
	link, err := NewPeerLinkFromConn(server, false)
	require.NoError(t, err)
	defer link.Close()

	_, localPort, _ := SplitAddr(conn.LocalAddr())
	assert.Equal(t, "127.0.0.1", link.IP())
	assert.Equal(t, localPort, link.Port())
	assert.False(t, link.IsOutbound())
}
