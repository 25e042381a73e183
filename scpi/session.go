package scpi

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/go-scpi/framer"
	"github.com/arloliu/go-scpi/logger"
	"github.com/arloliu/go-scpi/transport"
)

// Response is the result of Execute: the reply frame of a query (nil for a command) and,
// in strict mode, the error queue entries read after it.
type Response struct {
	Payload []byte
	Errors  []ErrorQueueEntry
}

// Session is a synchronous SCPI conversation with one instrument.
//
// All methods are safe for concurrent use, but transactions are never queued: a call
// made while another transaction is running fails with ErrConcurrentAccess.
type Session struct {
	id       uuid.UUID
	cfg      *SessionConfig
	logger   logger.Logger
	stateMgr *stateManager
	errQueue *ErrorQueue
	timeout  atomic.Int64
	metrics  SessionMetrics

	mu     sync.RWMutex
	tr     *transport.Transport
	engine *Engine
}

// NewSession creates a closed session for cfg. Call Open to connect.
func NewSession(cfg *SessionConfig) (*Session, error) {
	if cfg == nil {
		return nil, ErrSessionConfigNil
	}

	s := &Session{
		id:  uuid.New(),
		cfg: cfg,
	}
	s.logger = cfg.GetLogger().With("session", s.id.String(), "addr", cfg.Addr())
	s.stateMgr = newStateManager(s, s.logger)
	s.errQueue = NewErrorQueue(cfg.ErrorQuery(), 0, s.logger)
	s.timeout.Store(int64(cfg.ReadTimeout()))

	return s, nil
}

// Dial creates a session for host:port and opens it.
func Dial(ctx context.Context, host string, port int, opts ...SessionOption) (*Session, error) {
	cfg, err := NewSessionConfig(host, port, opts...)
	if err != nil {
		return nil, err
	}

	s, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}

	if err := s.Open(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// ID returns the unique session identifier used in log records.
func (s *Session) ID() uuid.UUID { return s.id }

// Config returns the session configuration.
func (s *Session) Config() *SessionConfig { return s.cfg }

// Endpoint returns the instrument endpoint.
func (s *Session) Endpoint() transport.Endpoint { return s.cfg.Endpoint() }

// Logger returns the session logger.
func (s *Session) Logger() logger.Logger { return s.logger }

// Metrics returns the session counters.
func (s *Session) Metrics() *SessionMetrics { return &s.metrics }

// State returns the current session state.
func (s *Session) State() State { return s.stateMgr.State() }

// AddStateChangeHandler registers handlers invoked after every state change.
func (s *Session) AddStateChangeHandler(handlers ...StateChangeHandler) {
	s.stateMgr.addHandler(handlers...)
}

// TransportMetrics returns the counters of the current connection, or nil when the
// session has no connection.
func (s *Session) TransportMetrics() *transport.Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.tr == nil {
		return nil
	}

	return s.tr.Metrics()
}

// Timeout returns the default query timeout.
func (s *Session) Timeout() time.Duration {
	return time.Duration(s.timeout.Load())
}

// SetTimeout changes the default query timeout, effective from the next transaction.
func (s *Session) SetTimeout(d time.Duration) error {
	if err := validateReadTimeout(d); err != nil {
		return err
	}
	s.timeout.Store(int64(d))

	s.mu.RLock()
	if s.engine != nil {
		s.engine.SetTimeout(d)
	}
	s.mu.RUnlock()

	return nil
}

// Open connects to the instrument. It is only valid in the Closed state; a failed dial
// leaves the session Closed and returns an error matching ErrConnect.
func (s *Session) Open(ctx context.Context) error {
	if err := s.stateMgr.toConnecting(); err != nil {
		return fmt.Errorf("%w: open requires %s, session is %s", ErrInvalidState, ClosedState, s.State())
	}

	fr, err := framer.New(
		framer.WithTerminator(s.cfg.terminator),
		framer.WithMaxSize(s.cfg.maxFrameSize),
		framer.WithBlockTrailer(s.cfg.blockTrailer),
	)
	if err != nil {
		s.stateMgr.toClosed()
		return err
	}

	tr, err := transport.Dial(ctx, s.cfg.Endpoint(),
		transport.WithLogger(s.logger),
		transport.WithChunkSize(s.cfg.chunkSize),
	)
	if err != nil {
		s.logger.Warn("failed to connect", "error", err)
		s.stateMgr.toClosed()

		return err
	}

	engine := NewEngine(tr, fr, s.logger)
	engine.SetTimeout(s.Timeout())
	engine.staleDrainWindow = s.cfg.staleDrainWindow
	engine.metrics = &s.metrics
	engine.onFault = s.fault

	s.mu.Lock()
	s.tr = tr
	s.engine = engine
	s.mu.Unlock()

	if err := s.stateMgr.toOpen(); err != nil {
		// Close ran while dialing
		s.detach(tr)
		_ = tr.Close()

		return fmt.Errorf("%w: session closed while connecting", ErrInvalidState)
	}

	return nil
}

// Close releases the connection and moves the session to Closed. It is idempotent and
// valid in every state, including Faulted.
func (s *Session) Close() error {
	s.mu.Lock()
	tr := s.tr
	s.tr = nil
	s.engine = nil
	s.mu.Unlock()

	var err error
	if tr != nil {
		err = tr.Close()
	}
	s.stateMgr.toClosed()

	return err
}

// Command writes text as a command. In strict mode the error queue is drained afterwards
// and reported entries are returned as *InstrumentError.
//
// Text holding a query unit is rejected with ErrUnexpectedKind, since its reply would
// be read as the reply of a later query. Use Query, or Execute with an explicit Message.
func (s *Session) Command(ctx context.Context, text string) error {
	msg, err := newCommandMessage(text)
	if err != nil {
		return err
	}

	_, err = s.execute(ctx, msg, s.Timeout(), textFrame)

	return err
}

// Query writes text as a query and returns the reply text with the default timeout.
func (s *Session) Query(ctx context.Context, text string) (string, error) {
	return s.QueryTimeout(ctx, text, s.Timeout())
}

// QueryTimeout is like Query with an explicit timeout for this call, for operations known
// to take longer than usual such as *OPC? after a sweep.
//
// In strict mode a valid reply is returned together with an *InstrumentError when the
// error queue was not empty.
func (s *Session) QueryTimeout(ctx context.Context, text string, timeout time.Duration) (string, error) {
	resp, err := s.execute(ctx, NewQuery(text), timeout, textFrame)
	if resp == nil {
		return "", err
	}

	return trimText(resp.Payload, s.cfg.terminator), err
}

// QueryBytes is like Query but returns the raw reply frame.
func (s *Session) QueryBytes(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.execute(ctx, NewQuery(text), s.Timeout(), textFrame)
	if resp == nil {
		return nil, err
	}

	return resp.Payload, err
}

// QueryBinary writes text as a query and returns the data of the IEEE 488.2 arbitrary
// block reply.
func (s *Session) QueryBinary(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.execute(ctx, NewQuery(text), s.Timeout(), blockFrame)
	if resp == nil {
		return nil, err
	}

	return resp.Payload, err
}

// Execute sends msg as classified by its IsQuery flag.
func (s *Session) Execute(ctx context.Context, msg Message) (*Response, error) {
	return s.execute(ctx, msg, s.Timeout(), textFrame)
}

// DrainErrors reads the instrument error queue until it is empty.
func (s *Session) DrainErrors(ctx context.Context) ([]ErrorQueueEntry, error) {
	engine, err := s.acquireEngine("drain errors")
	if err != nil {
		return nil, err
	}

	var entries []ErrorQueueEntry
	err = engine.Do(ctx, func(tx *Tx) error {
		var err error
		entries, err = s.errQueue.Drain(ctx, tx, s.cfg.maxErrorEntries)

		return err
	})
	s.metrics.addInstrumentErrCount(len(entries))

	return entries, err
}

// Do runs fn as one transaction, so a sequence of exchanges cannot be interleaved with
// other callers. Strict mode reconciliation does not apply inside fn.
func (s *Session) Do(ctx context.Context, fn func(tx *Tx) error) error {
	engine, err := s.acquireEngine("transaction")
	if err != nil {
		return err
	}

	return engine.Do(ctx, fn)
}

func (s *Session) execute(ctx context.Context, msg Message, timeout time.Duration, mode frameMode) (*Response, error) {
	op := "command"
	if msg.IsQuery {
		op = "query"
	}
	engine, err := s.acquireEngine(op)
	if err != nil {
		return nil, err
	}

	var resp *Response
	err = engine.Do(ctx, func(tx *Tx) error {
		payload, err := tx.e.exchange(ctx, msg, timeout, mode)
		if err != nil {
			return err
		}
		resp = &Response{Payload: payload}

		if !s.cfg.strictMode {
			return nil
		}

		resp.Errors, err = s.errQueue.Drain(ctx, tx, s.cfg.maxErrorEntries)

		return err
	})
	if err != nil {
		return resp, err
	}

	if len(resp.Errors) > 0 {
		s.metrics.addInstrumentErrCount(len(resp.Errors))
		return resp, &InstrumentError{Entries: resp.Errors}
	}

	return resp, nil
}

func (s *Session) acquireEngine(op string) (*Engine, error) {
	if state := s.State(); !state.IsOpen() {
		return nil, invalidStateError(op, state)
	}

	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	if engine == nil {
		return nil, invalidStateError(op, s.State())
	}

	return engine, nil
}

func (s *Session) fault(err error) {
	if s.stateMgr.toFaulted() {
		s.metrics.incFaultCount()
		s.logger.Error("session faulted", "error", err)
	}
}

// detach clears the connection fields if they still refer to tr.
func (s *Session) detach(tr *transport.Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tr == tr {
		s.tr = nil
		s.engine = nil
	}
}
