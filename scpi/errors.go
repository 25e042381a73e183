package scpi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arloliu/go-scpi/framer"
	"github.com/arloliu/go-scpi/transport"
)

// Transport and framing errors, re-exported so callers only import scpi.
var (
	// ErrConnect indicates that the instrument could not be reached.
	ErrConnect = transport.ErrConnect

	// ErrWrite indicates that writing a message failed. The session becomes faulted.
	ErrWrite = transport.ErrWrite

	// ErrTimeout indicates that no complete reply arrived before the deadline.
	// The session stays open.
	ErrTimeout = transport.ErrTimeout

	// ErrConnectionClosed indicates that the instrument closed the connection.
	// The session becomes faulted.
	ErrConnectionClosed = transport.ErrConnectionClosed

	// ErrFrameTooLarge indicates that a reply exceeded the maximum frame size.
	ErrFrameTooLarge = framer.ErrFrameTooLarge

	// ErrInvalidBlockHeader indicates that a binary block reply had a malformed header.
	ErrInvalidBlockHeader = framer.ErrInvalidBlockHeader
)

var (
	// ErrConcurrentAccess indicates that a transaction was attempted while another one
	// was in progress on the same session. It is returned immediately, never queued.
	ErrConcurrentAccess = errors.New("scpi: transaction already in progress")

	// ErrInvalidState indicates that an operation was attempted in a session state that
	// does not allow it, such as a query on a closed session.
	ErrInvalidState = errors.New("scpi: invalid session state")

	// ErrInvalidTransition indicates that a state change was not allowed from the
	// current state.
	ErrInvalidTransition = errors.New("scpi: invalid state transition")

	// ErrInstrument indicates that the instrument error queue held entries.
	// *InstrumentError matches it.
	ErrInstrument = errors.New("scpi: instrument reported errors")

	// ErrInvalidErrorEntry indicates that an error queue reply could not be parsed as
	// `<code>,"<message>"`.
	ErrInvalidErrorEntry = errors.New("scpi: malformed error queue entry")

	// ErrEmptyMessage indicates that a message had no content.
	ErrEmptyMessage = errors.New("scpi: empty message")

	// ErrUnexpectedKind indicates a command passed where a query is required, or the
	// other way around.
	ErrUnexpectedKind = errors.New("scpi: unexpected message kind")

	// ErrSessionConfigNil indicates that a nil SessionConfig was provided.
	ErrSessionConfigNil = errors.New("scpi: session config is nil")

	// ErrSessionNil indicates that a nil Session was provided.
	ErrSessionNil = errors.New("scpi: session is nil")

	// ErrDuplicateSession indicates that a Registry already holds a session under the
	// given name.
	ErrDuplicateSession = errors.New("scpi: session name already registered")

	// ErrInvalidValue indicates that a reply could not be converted to the requested type.
	ErrInvalidValue = errors.New("scpi: invalid value")

	// ErrInvalidConfig indicates that a session configuration value was rejected.
	ErrInvalidConfig = errors.New("scpi: invalid session config")
)

// InstrumentError carries the entries read from the instrument error queue after a
// transaction in strict mode. It matches ErrInstrument with errors.Is.
type InstrumentError struct {
	Entries []ErrorQueueEntry
}

func (e *InstrumentError) Error() string {
	parts := make([]string, len(e.Entries))
	for i, entry := range e.Entries {
		parts[i] = entry.String()
	}

	return fmt.Sprintf("scpi: instrument reported %d error(s): %s", len(e.Entries), strings.Join(parts, "; "))
}

// Is reports whether target is ErrInstrument.
func (e *InstrumentError) Is(target error) bool {
	return target == ErrInstrument
}

func invalidStateError(op string, state State) error {
	return fmt.Errorf("%w: %s requires %s, session is %s", ErrInvalidState, op, OpenState, state)
}
