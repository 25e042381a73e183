package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/arloliu/go-scpi/logger"
)

const (
	// DefaultChunkSize is the default size of the receive buffer.
	DefaultChunkSize = 64 * 1024
	// MinChunkSize is the smallest accepted receive buffer size.
	MinChunkSize = 64
	// MaxChunkSize is the largest accepted receive buffer size.
	MaxChunkSize = 16 * 1024 * 1024

	dialKeepAlive = 30 * time.Second
)

// Option configures a Transport.
type Option interface {
	apply(*Transport)
}

type optFunc func(*Transport)

func (f optFunc) apply(t *Transport) {
	f(t)
}

// WithLogger sets the logger. The package default logger is used otherwise.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	})
}

// WithChunkSize sets the receive buffer size. Values outside [MinChunkSize, MaxChunkSize]
// are clamped.
func WithChunkSize(size int) Option {
	return optFunc(func(t *Transport) {
		t.chunkSize = min(max(size, MinChunkSize), MaxChunkSize)
	})
}

// Transport is a connected byte stream to an instrument.
//
// Send and ReceiveChunk must not be called concurrently with themselves; Interrupt and
// Close may be called from any goroutine.
type Transport struct {
	endpoint  Endpoint
	conn      net.Conn
	logger    logger.Logger
	chunkSize int
	buf       []byte

	interrupted atomic.Bool
	closed      atomic.Bool
	metrics     Metrics
}

// Dial opens a TCP connection to ep.
//
// The dial is bounded by ep.ConnectTimeout and by ctx. Any failure, including name
// resolution, is reported as ErrConnect wrapping the underlying error.
func Dial(ctx context.Context, ep Endpoint, opts ...Option) (*Transport, error) {
	if ep.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ep.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{KeepAlive: dialKeepAlive}
	conn, err := dialer.DialContext(ctx, "tcp", ep.Addr())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, ep.Addr(), err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	return New(conn, ep, opts...), nil
}

// New wraps an established connection. It is used by Dial and by tests that supply
// an in-memory connection.
func New(conn net.Conn, ep Endpoint, opts ...Option) *Transport {
	t := &Transport{
		endpoint:  ep,
		conn:      conn,
		logger:    logger.GetLogger(),
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt.apply(t)
	}
	t.buf = make([]byte, t.chunkSize)
	t.logger = t.logger.With("remoteAddress", ep.Addr())

	return t
}

// Endpoint returns the endpoint the transport was created for.
func (t *Transport) Endpoint() Endpoint {
	return t.endpoint
}

// Metrics returns the transport counters.
func (t *Transport) Metrics() *Metrics {
	return &t.metrics
}

// Send writes b completely.
//
// Any failure, including a short write, is reported as ErrWrite. A write on a transport
// closed with Close additionally matches ErrConnectionClosed. Bytes already written are
// not retracted.
func (t *Transport) Send(b []byte) error {
	if t.closed.Load() {
		return fmt.Errorf("%w: %w", ErrWrite, ErrConnectionClosed)
	}

	var deadline time.Time
	if t.endpoint.WriteTimeout > 0 {
		deadline = time.Now().Add(t.endpoint.WriteTimeout)
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		t.metrics.incWriteErrCount()
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	for written := 0; written < len(b); {
		n, err := t.conn.Write(b[written:])
		written += n
		t.metrics.addBytesSent(n)

		if err != nil {
			t.metrics.incWriteErrCount()
			if t.closed.Load() {
				return fmt.Errorf("%w: %d of %d bytes written: %w", ErrWrite, written, len(b), ErrConnectionClosed)
			}

			return fmt.Errorf("%w: %d of %d bytes written: %w", ErrWrite, written, len(b), err)
		}
	}

	if t.logger.Level() == logger.DebugLevel {
		t.logger.Debug("sent", "bytes", len(b), "data", printable(b))
	}

	return nil
}

// ReceiveChunk performs one read, returning whatever bytes are available (at least one)
// before deadline.
//
// The returned slice aliases an internal buffer and is valid until the next call.
// It returns ErrTimeout when the deadline passes or Interrupt was called, and
// ErrConnectionClosed when the peer closed or reset the connection.
func (t *Transport) ReceiveChunk(deadline time.Time) ([]byte, error) {
	if t.closed.Load() {
		return nil, ErrConnectionClosed
	}

	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return nil, t.readError(err)
	}
	// Interrupt sets the flag before moving the deadline, so a call racing with
	// SetReadDeadline above is seen here.
	if t.interrupted.Load() {
		t.metrics.incReadTimeoutCount()
		return nil, fmt.Errorf("%w: interrupted", ErrTimeout)
	}

	n, err := t.conn.Read(t.buf)
	if n > 0 {
		t.metrics.addBytesRecv(n)
		if t.logger.Level() == logger.DebugLevel {
			t.logger.Debug("received", "bytes", n, "data", printable(t.buf[:n]))
		}
		// a non-nil err will surface again on the next read
		return t.buf[:n], nil
	}
	if err == nil {
		return nil, fmt.Errorf("%w: zero-byte read", ErrConnectionClosed)
	}

	return nil, t.readError(err)
}

// Interrupt aborts a blocked or upcoming ReceiveChunk, which returns ErrTimeout.
// The interrupt stays armed until ResetInterrupt.
func (t *Transport) Interrupt() {
	t.interrupted.Store(true)
	_ = t.conn.SetReadDeadline(time.Now())
}

// ResetInterrupt disarms a previous Interrupt.
func (t *Transport) ResetInterrupt() {
	t.interrupted.Store(false)
}

// Close closes the connection. It is idempotent and unblocks pending reads.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.logger.Debug("closing transport")
	if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("transport: close: %w", err)
	}

	return nil
}

// IsClosed reports whether Close has been called.
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

func (t *Transport) readError(err error) error {
	var netErr net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		t.metrics.incReadTimeoutCount()
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	t.metrics.incReadErrCount()
	if !isPeerClosed(err) {
		t.logger.Warn("unexpected read error", "error", err)
	}

	return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
}

func isPeerClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}

// printable renders a wire chunk for debug logs, truncating long binary data.
func printable(b []byte) string {
	const limit = 128
	if len(b) > limit {
		return fmt.Sprintf("%q...(%d more bytes)", b[:limit], len(b)-limit)
	}

	return fmt.Sprintf("%q", b)
}
