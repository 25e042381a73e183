package scpi

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-scpi/logger"
)

// State represents the lifecycle stage of a Session.
type State uint32

// Session states.
const (
	// ClosedState indicates no connection exists. Sessions start here.
	ClosedState State = iota
	// ConnectingState indicates Open is dialing the instrument.
	ConnectingState
	// OpenState indicates the session is ready for transactions.
	OpenState
	// FaultedState indicates the connection broke; only Close is accepted.
	FaultedState
)

// IsClosed returns if the current state is closed.
func (s State) IsClosed() bool { return s == ClosedState }

// IsConnecting returns if the current state is connecting.
func (s State) IsConnecting() bool { return s == ConnectingState }

// IsOpen returns if the current state is open.
func (s State) IsOpen() bool { return s == OpenState }

// IsFaulted returns if the current state is faulted.
func (s State) IsFaulted() bool { return s == FaultedState }

// String returns string representation of the state.
func (s State) String() string {
	switch s {
	case ClosedState:
		return "closed"
	case ConnectingState:
		return "connecting"
	case OpenState:
		return "open"
	case FaultedState:
		return "faulted"
	default:
		return "unknown"
	}
}

// StateChangeHandler is invoked after the state of a session changes.
//
// Note: the handler is invoked synchronously while the state lock is held. It must not
// call Open or Close on the same session, and should return quickly.
type StateChangeHandler func(sess *Session, prevState State, newState State)

// stateManager serializes session state transitions and notifies handlers.
type stateManager struct {
	mu       sync.Mutex
	state    atomic.Uint32
	sess     *Session
	logger   logger.Logger
	handlers []StateChangeHandler
}

func newStateManager(sess *Session, l logger.Logger) *stateManager {
	mgr := &stateManager{sess: sess, logger: l}
	mgr.state.Store(uint32(ClosedState))

	return mgr
}

// State returns the current state.
func (m *stateManager) State() State {
	return State(m.state.Load())
}

func (m *stateManager) addHandler(handlers ...StateChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handlers...)
}

// toConnecting moves Closed to Connecting.
func (m *stateManager) toConnecting() error {
	return m.transition(ConnectingState, ClosedState)
}

// toOpen moves Connecting to Open.
func (m *stateManager) toOpen() error {
	return m.transition(OpenState, ConnectingState)
}

// toFaulted moves Open to Faulted. It returns false if the session was not Open.
func (m *stateManager) toFaulted() bool {
	return m.transition(FaultedState, OpenState) == nil
}

// toClosed moves any state to Closed and returns the previous state.
func (m *stateManager) toClosed() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.State()
	if prev != ClosedState {
		m.set(prev, ClosedState)
	}

	return prev
}

func (m *stateManager) transition(to State, from State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.State()
	if cur != from {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, cur, to)
	}
	m.set(cur, to)

	return nil
}

// set must be called with m.mu held.
func (m *stateManager) set(prev State, next State) {
	m.state.Store(uint32(next))
	m.logger.Info("session state changed", "prev", prev.String(), "state", next.String())

	for _, handler := range m.handlers {
		handler(m.sess, prev, next)
	}
}
