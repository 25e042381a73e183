package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestTransport creates a Transport backed by the local end of net.Pipe().
// Returns the transport and the remote end for instrument simulation.
func newTestTransport(t *testing.T, opts ...Option) (*Transport, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	ep := Endpoint{Host: "pipe", Port: DefaultPort, WriteTimeout: time.Second}

	return New(local, ep, opts...), remote
}

func TestEndpoint_Addr(t *testing.T) {
	require := require.New(t)

	require.Equal("10.0.0.5:5025", Endpoint{Host: "10.0.0.5", Port: 5025}.Addr())
	require.Equal("[::1]:5025", Endpoint{Host: "::1", Port: 5025}.String())
}

func TestTransport_SendReceive(t *testing.T) {
	require := require.New(t)
	tr, remote := newTestTransport(t)

	go func() {
		buf := make([]byte, 16)
		n, _ := io.ReadAtLeast(remote, buf, len("*IDN?\n"))
		_, _ = remote.Write([]byte("echo:" + string(buf[:n])))
	}()

	require.NoError(tr.Send([]byte("*IDN?\n")))

	var got []byte
	for len(got) < len("echo:*IDN?\n") {
		chunk, err := tr.ReceiveChunk(time.Now().Add(time.Second))
		require.NoError(err)
		got = append(got, chunk...)
	}
	require.Equal("echo:*IDN?\n", string(got))

	m := tr.Metrics()
	require.EqualValues(6, m.BytesSent.Load())
	require.EqualValues(len(got), m.BytesRecv.Load())
}

func TestTransport_ReceiveTimeout(t *testing.T) {
	require := require.New(t)
	tr, _ := newTestTransport(t)

	begin := time.Now()
	_, err := tr.ReceiveChunk(begin.Add(50 * time.Millisecond))
	require.ErrorIs(err, ErrTimeout)
	require.GreaterOrEqual(time.Since(begin), 50*time.Millisecond)
	require.Less(time.Since(begin), time.Second)
	require.EqualValues(1, tr.Metrics().ReadTimeoutCount.Load())
}

func TestTransport_Interrupt(t *testing.T) {
	require := require.New(t)
	tr, _ := newTestTransport(t)

	go func() {
		time.Sleep(30 * time.Millisecond)
		tr.Interrupt()
	}()

	begin := time.Now()
	_, err := tr.ReceiveChunk(begin.Add(5 * time.Second))
	require.ErrorIs(err, ErrTimeout)
	require.Less(time.Since(begin), time.Second)

	// stays armed until reset
	_, err = tr.ReceiveChunk(time.Now().Add(5 * time.Second))
	require.ErrorIs(err, ErrTimeout)

	tr.ResetInterrupt()
	_, err = tr.ReceiveChunk(time.Now().Add(20 * time.Millisecond))
	require.ErrorIs(err, ErrTimeout)
}

func TestTransport_PeerClosed(t *testing.T) {
	require := require.New(t)
	tr, remote := newTestTransport(t)

	require.NoError(remote.Close())

	_, err := tr.ReceiveChunk(time.Now().Add(time.Second))
	require.ErrorIs(err, ErrConnectionClosed)

	err = tr.Send([]byte("*RST\n"))
	require.ErrorIs(err, ErrWrite)
}

func TestTransport_Close(t *testing.T) {
	require := require.New(t)
	tr, _ := newTestTransport(t)

	require.NoError(tr.Close())
	require.NoError(tr.Close())
	require.True(tr.IsClosed())

	_, err := tr.ReceiveChunk(time.Now().Add(time.Second))
	require.ErrorIs(err, ErrConnectionClosed)

	err = tr.Send([]byte("*CLS\n"))
	require.ErrorIs(err, ErrWrite)
	require.ErrorIs(err, ErrConnectionClosed)
}

func TestTransport_CloseUnblocksRead(t *testing.T) {
	require := require.New(t)
	tr, _ := newTestTransport(t)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = tr.Close()
	}()

	_, err := tr.ReceiveChunk(time.Now().Add(5 * time.Second))
	require.ErrorIs(err, ErrConnectionClosed)
}

func TestTransport_ChunkSize(t *testing.T) {
	require := require.New(t)
	tr, remote := newTestTransport(t, WithChunkSize(1))
	require.Len(tr.buf, MinChunkSize)

	go func() {
		_, _ = remote.Write(make([]byte, 100))
	}()

	chunk, err := tr.ReceiveChunk(time.Now().Add(time.Second))
	require.NoError(err)
	require.Len(chunk, MinChunkSize)
}

func TestDial(t *testing.T) {
	require := require.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	tr, err := Dial(context.Background(), Endpoint{Host: "127.0.0.1", Port: addr.Port, ConnectTimeout: time.Second})
	require.NoError(err)
	defer tr.Close()

	peer := <-accepted
	defer peer.Close()

	require.NoError(tr.Send([]byte("*IDN?\n")))
	buf := make([]byte, 6)
	_, err = io.ReadFull(peer, buf)
	require.NoError(err)
	require.Equal("*IDN?\n", string(buf))
}

func TestDial_Refused(t *testing.T) {
	require := require.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(ln.Close())

	_, err = Dial(context.Background(), Endpoint{Host: "127.0.0.1", Port: port, ConnectTimeout: time.Second})
	require.ErrorIs(err, ErrConnect)
}

func TestDial_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Dial(ctx, Endpoint{Host: "127.0.0.1", Port: DefaultPort})
	require.ErrorIs(t, err, ErrConnect)
}
