// Package simulator provides a scriptable fake SCPI instrument listening on a local
// TCP port. It is used by tests and examples in place of real hardware.
//
// Requests are matched case-insensitively against registered handlers by their full
// text and then by their program header (the text before the first space). A query
// without a handler is answered with nothing and queues -113 "Undefined header", the
// way real instruments behave. SYST:ERR? pops the simulated error queue.
package simulator

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-scpi/framer"
	"github.com/arloliu/go-scpi/internal/queue"
	"github.com/arloliu/go-scpi/logger"
)

// Responder produces the raw bytes written back for a request, terminator included.
// A nil result sends nothing.
type Responder func(req string) []byte

// Reply returns a Responder answering text followed by "\n".
func Reply(text string) Responder {
	return func(string) []byte {
		return []byte(text + "\n")
	}
}

// Block returns a Responder answering data as a definite-length arbitrary block
// followed by "\n".
func Block(data []byte) Responder {
	return func(string) []byte {
		return append(framer.EncodeBlock(data), '\n')
	}
}

// Silent returns a Responder that never answers.
func Silent() Responder {
	return func(string) []byte { return nil }
}

// Option configures a Server.
type Option func(*Server)

// WithTerminator sets the request terminator. The default is "\n".
func WithTerminator(term string) Option {
	return func(s *Server) {
		s.term = []byte(term)
	}
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithIdentity sets the *IDN? reply.
func WithIdentity(idn string) Option {
	return func(s *Server) {
		s.Handle("*IDN?", Reply(idn))
	}
}

const (
	// DefaultIdentity is the *IDN? reply of a new Server.
	DefaultIdentity = "Rohde-Schwarz,SIM-1000,100001,1.0.0"
	// DefaultErrorQueueSize is the capacity of the simulated error queue.
	DefaultErrorQueueSize = 10

	queueOverflowEntry = "-350,\"Queue overflow\""
)

// Server is a fake instrument.
type Server struct {
	listener net.Listener
	term     []byte
	logger   logger.Logger
	handlers *xsync.MapOf[string, Responder]

	mu       sync.Mutex
	errQueue *queue.Bounded[string]
	requests []string
	conns    map[net.Conn]struct{}

	wg sync.WaitGroup
}

// New starts a server on 127.0.0.1 with an OS-assigned port.
func New(opts ...Option) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("simulator: listen: %w", err)
	}

	s := &Server{
		listener: ln,
		term:     []byte{'\n'},
		logger:   logger.GetLogger(),
		handlers: xsync.NewMapOf[string, Responder](),
		conns:    make(map[net.Conn]struct{}),
		errQueue: queue.NewBounded[string](DefaultErrorQueueSize),
	}
	s.Handle("*IDN?", Reply(DefaultIdentity))
	s.Handle("*OPC?", Reply("1"))
	s.Handle("*CLS", func(string) []byte {
		s.ClearErrors()
		return nil
	})
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.acceptLoop()

	return s, nil
}

// Host returns the listen host.
func (s *Server) Host() string {
	return s.listener.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listen port.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Addr returns "host:port".
func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host(), strconv.Itoa(s.Port()))
}

// Handle registers r for a request text or program header, matched case-insensitively.
func (s *Server) Handle(pattern string, r Responder) {
	s.handlers.Store(strings.ToUpper(pattern), r)
}

// PushError appends an entry to the simulated error queue.
// When the queue is full, the newest entry is replaced with a queue overflow entry.
func (s *Server) PushError(code int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.errQueue.Enqueue(fmt.Sprintf("%d,\"%s\"", code, msg)) {
		s.errQueue.ReplaceTail(queueOverflowEntry)
	}
}

// ClearErrors empties the simulated error queue.
func (s *Server) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errQueue.Reset()
}

// Requests returns a copy of every request received so far, without terminators.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.requests))
	copy(out, s.requests)

	return out
}

// DropConnections closes every accepted connection, simulating an instrument reset.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.conns {
		_ = conn.Close()
	}
}

// Close stops the listener, drops all connections and waits for the handlers to exit.
func (s *Server) Close() error {
	err := s.listener.Close()
	s.DropConnections()
	s.wg.Wait()

	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	fr, err := framer.New(framer.WithTerminator(s.term))
	if err != nil {
		s.logger.Error("simulator: framer", "error", err)
		return
	}

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		if err := fr.Feed(buf[:n]); err != nil {
			s.logger.Warn("simulator: request too large", "error", err)
			return
		}

		for {
			frame, ok, _ := fr.Next()
			if !ok {
				break
			}
			for _, req := range splitUnits(string(frame)) {
				if reply := s.dispatch(req); len(reply) > 0 {
					if _, err := conn.Write(reply); err != nil {
						return
					}
				}
			}
		}
	}
}

func (s *Server) dispatch(req string) []byte {
	req = strings.TrimSpace(req)
	if req == "" {
		return nil
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	upper := strings.ToUpper(req)
	if r, ok := s.handlers.Load(upper); ok {
		return r(req)
	}
	header, _, _ := strings.Cut(upper, " ")
	if r, ok := s.handlers.Load(header); ok {
		return r(req)
	}

	switch strings.TrimPrefix(header, ":") {
	case "SYST:ERR?", "SYSTEM:ERROR?", "SYST:ERR:NEXT?", "SYSTEM:ERROR:NEXT?":
		return []byte(s.popError() + "\n")
	}

	if strings.HasSuffix(header, "?") {
		s.PushError(-113, "Undefined header")
	}

	return nil
}

func (s *Server) popError() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.errQueue.Dequeue()
	if !ok {
		return "0,\"No error\""
	}

	return entry
}

// splitUnits splits a program message into its ';'-separated units, ignoring
// separators inside quotes.
func splitUnits(msg string) []string {
	var units []string
	var quote byte
	start := 0
	for i := 0; i < len(msg); i++ {
		c := msg[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ';':
			units = append(units, msg[start:i])
			start = i + 1
		}
	}

	return append(units, msg[start:])
}
