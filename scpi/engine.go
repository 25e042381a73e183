package scpi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-scpi/framer"
	"github.com/arloliu/go-scpi/logger"
	"github.com/arloliu/go-scpi/transport"
)

// Conn is the byte-stream surface the Engine runs transactions over.
// *transport.Transport implements it.
type Conn interface {
	Send(b []byte) error
	ReceiveChunk(deadline time.Time) ([]byte, error)
	Interrupt()
	ResetInterrupt()
}

var _ Conn = (*transport.Transport)(nil)

type frameMode int

const (
	textFrame frameMode = iota
	blockFrame
)

func (m frameMode) String() string {
	if m == blockFrame {
		return "block"
	}

	return "text"
}

// Engine runs one request/response transaction at a time over a Conn.
//
// Ownership is taken with a compare-and-swap; a caller arriving while a transaction is
// in progress gets ErrConcurrentAccess immediately.
type Engine struct {
	conn   Conn
	fr     *framer.Framer
	term   []byte
	logger logger.Logger

	busy    atomic.Bool
	stale   atomic.Bool
	timeout atomic.Int64

	staleDrainWindow time.Duration
	metrics          *SessionMetrics
	onFault          func(err error)
}

// NewEngine creates an engine that writes through conn and frames replies with fr.
// The message terminator is taken from fr.
func NewEngine(conn Conn, fr *framer.Framer, l logger.Logger) *Engine {
	if l == nil {
		l = logger.GetLogger()
	}

	e := &Engine{
		conn:             conn,
		fr:               fr,
		term:             fr.Terminator(),
		logger:           l,
		staleDrainWindow: DefaultStaleDrainWindow,
		metrics:          &SessionMetrics{},
		onFault:          func(error) {},
	}
	e.timeout.Store(int64(DefaultReadTimeout))

	return e
}

// Timeout returns the default query timeout.
func (e *Engine) Timeout() time.Duration {
	return time.Duration(e.timeout.Load())
}

// SetTimeout changes the default query timeout.
func (e *Engine) SetTimeout(d time.Duration) {
	e.timeout.Store(int64(d))
}

// Busy reports whether a transaction is in progress.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// Do runs fn as one transaction. Every exchange made through the Tx happens under the
// same ownership, so no other caller can interleave messages.
func (e *Engine) Do(ctx context.Context, fn func(tx *Tx) error) error {
	if !e.busy.CompareAndSwap(false, true) {
		e.metrics.incConcurrentRejectCount()
		return ErrConcurrentAccess
	}
	defer e.busy.Store(false)

	return fn(&Tx{e: e})
}

// Execute runs a single exchange. It returns the reply frame for a query and nil for a
// command.
func (e *Engine) Execute(ctx context.Context, msg Message, timeout time.Duration) ([]byte, error) {
	var frame []byte
	err := e.Do(ctx, func(tx *Tx) error {
		var err error
		frame, err = tx.Exchange(ctx, msg, timeout)

		return err
	})

	return frame, err
}

// Tx is the handle for exchanges inside one transaction. It is only valid inside the
// function passed to Do.
type Tx struct {
	e *Engine
}

// Exchange writes msg and, for a query, waits up to timeout for one text frame.
// A non-positive timeout selects the engine default.
func (tx *Tx) Exchange(ctx context.Context, msg Message, timeout time.Duration) ([]byte, error) {
	return tx.e.exchange(ctx, msg, timeout, textFrame)
}

// ExchangeBlock writes the query msg and waits up to timeout for one IEEE 488.2
// arbitrary block, returning its data bytes.
func (tx *Tx) ExchangeBlock(ctx context.Context, msg Message, timeout time.Duration) ([]byte, error) {
	if !msg.IsQuery {
		return nil, fmt.Errorf("%w: %q is not a query", ErrUnexpectedKind, msg.String())
	}

	return tx.e.exchange(ctx, msg, timeout, blockFrame)
}

// Command writes text as a command. Text holding a query unit is rejected with
// ErrUnexpectedKind.
func (tx *Tx) Command(ctx context.Context, text string) error {
	msg, err := newCommandMessage(text)
	if err != nil {
		return err
	}

	_, err = tx.e.exchange(ctx, msg, 0, textFrame)

	return err
}

// Query writes text as a query and returns the reply with the default timeout.
func (tx *Tx) Query(ctx context.Context, text string) (string, error) {
	frame, err := tx.e.exchange(ctx, NewQuery(text), 0, textFrame)
	if err != nil {
		return "", err
	}

	return trimText(frame, tx.e.term), nil
}

func (e *Engine) exchange(ctx context.Context, msg Message, timeout time.Duration, mode frameMode) ([]byte, error) {
	if len(bytes.TrimSpace(msg.Payload)) == 0 {
		return nil, ErrEmptyMessage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = e.Timeout()
	}

	e.conn.ResetInterrupt()
	if e.stale.Load() {
		e.drainStale()
	}
	if msg.IsQuery {
		e.discardResidual()
	}

	// one deadline for the whole transaction, taken after the stale drain and never
	// extended per chunk
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := e.conn.Send(e.withTerminator(msg.Payload)); err != nil {
		e.fault(err)
		return nil, fmt.Errorf("scpi: send %q: %w", msg.String(), err)
	}

	if !msg.IsQuery {
		e.metrics.incCommandCount()
		return nil, nil
	}
	e.metrics.incQueryCount()

	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		e.conn.Interrupt()
		close(interrupted)
	})
	defer func() {
		// an interrupt already running must land before the next transaction resets it
		if !stop() {
			<-interrupted
		}
	}()

	return e.receive(ctx, msg, mode, deadline, timeout)
}

func (e *Engine) receive(ctx context.Context, msg Message, mode frameMode, deadline time.Time, timeout time.Duration) ([]byte, error) {
	for {
		frame, ok, err := e.next(mode)
		if err != nil {
			e.fr.Reset()
			e.stale.Store(true)

			return nil, fmt.Errorf("scpi: query %q: %w", msg.String(), err)
		}
		if ok {
			e.metrics.incReplyCount()
			return frame, nil
		}

		chunk, err := e.conn.ReceiveChunk(deadline)
		if err != nil {
			return nil, e.receiveError(ctx, msg, timeout, err)
		}

		if err := e.fr.Feed(chunk); err != nil {
			e.fr.Reset()
			e.stale.Store(true)
			e.logger.Warn("reply exceeds maximum frame size", "query", msg.String(), "error", err)

			return nil, fmt.Errorf("scpi: query %q: %w", msg.String(), err)
		}
	}
}

func (e *Engine) receiveError(ctx context.Context, msg Message, timeout time.Duration, err error) error {
	if !errors.Is(err, transport.ErrTimeout) {
		e.fault(err)
		return fmt.Errorf("scpi: query %q: %w", msg.String(), err)
	}

	// a reply may still arrive for this query
	e.stale.Store(true)

	ctxErr := ctx.Err()
	if errors.Is(ctxErr, context.Canceled) {
		return fmt.Errorf("scpi: query %q: %w", msg.String(), ctxErr)
	}

	e.metrics.incTimeoutCount()
	e.logger.Warn("query timed out", "query", msg.String(), "timeout", timeout.String(), "buffered", e.fr.Len())

	if ctxErr != nil {
		return fmt.Errorf("scpi: query %q: %w: %w", msg.String(), ErrTimeout, ctxErr)
	}

	return fmt.Errorf("scpi: query %q: no reply within %v: %w", msg.String(), timeout, ErrTimeout)
}

func (e *Engine) next(mode frameMode) ([]byte, bool, error) {
	if mode == blockFrame {
		return e.fr.NextBlock()
	}

	return e.fr.Next()
}

// drainStale reads and discards input for the stale drain window. It runs before the
// first transaction after a timeout, when a late reply may still be in flight.
func (e *Engine) drainStale() {
	defer e.stale.Store(false)

	discarded := e.fr.Len()
	e.fr.Reset()

	if e.staleDrainWindow > 0 {
		deadline := time.Now().Add(e.staleDrainWindow)
		for {
			chunk, err := e.conn.ReceiveChunk(deadline)
			if err != nil {
				break
			}
			discarded += len(chunk)
		}
	}

	if discarded > 0 {
		e.metrics.incStaleDiscardCount()
		e.logger.Warn("discarded stale reply data", "bytes", discarded)
	}
}

// discardResidual drops bytes left in the framer by a previous transaction, such as a
// reply to a command that was not expected to answer.
func (e *Engine) discardResidual() {
	if n := e.fr.Len(); n > 0 {
		e.metrics.incStaleDiscardCount()
		e.logger.Warn("discarded unsolicited reply data", "bytes", n)
	}
	e.fr.Reset()
}

func (e *Engine) fault(err error) {
	e.logger.Error("transaction failed, connection unusable", "error", err)
	e.onFault(err)
}

func (e *Engine) withTerminator(payload []byte) []byte {
	if bytes.HasSuffix(payload, e.term) {
		return payload
	}

	out := make([]byte, 0, len(payload)+len(e.term))
	out = append(out, payload...)

	return append(out, e.term...)
}

// trimText strips a trailing carriage return left by instruments that end replies with
// "\r\n" when the terminator is "\n".
func trimText(frame []byte, term []byte) string {
	if bytes.Equal(term, []byte{'\n'}) {
		frame = bytes.TrimSuffix(frame, []byte{'\r'})
	}

	return string(frame)
}
