package scpi

import (
	"fmt"
	"strings"
)

// Message is one outbound SCPI program message.
type Message struct {
	// Payload is the message text. The session terminator is appended when absent.
	Payload []byte
	// IsQuery indicates a reply frame is expected.
	IsQuery bool
}

// NewMessage creates a message and classifies it with IsQuery.
func NewMessage(text string) Message {
	return Message{Payload: []byte(text), IsQuery: IsQuery(text)}
}

// NewCommand creates a message that expects no reply.
func NewCommand(text string) Message {
	return Message{Payload: []byte(text)}
}

func newCommandMessage(text string) (Message, error) {
	if ContainsQuery(text) {
		return Message{}, fmt.Errorf("%w: %q is a query", ErrUnexpectedKind, strings.TrimSpace(text))
	}

	return NewCommand(text), nil
}

// NewQuery creates a message that expects exactly one reply frame.
func NewQuery(text string) Message {
	return Message{Payload: []byte(text), IsQuery: true}
}

// String returns the payload text without trailing whitespace.
func (m Message) String() string {
	return strings.TrimRight(string(m.Payload), " \t\r\n")
}

// IsQuery reports whether text is an SCPI query: the program header of the last
// ';'-separated unit ends in '?'. Separators and '?' inside quoted strings are ignored,
// so "MMEM:LOAD 'a?b'" is a command and "FREQ 1e9;*OPC?" is a query.
func IsQuery(text string) bool {
	headers := unitHeaders(text)
	if len(headers) == 0 {
		return false
	}

	return strings.HasSuffix(headers[len(headers)-1], "?")
}

// ContainsQuery reports whether any ';'-separated unit of text is a query, so the
// instrument answers it with at least one reply.
func ContainsQuery(text string) bool {
	for _, header := range unitHeaders(text) {
		if strings.HasSuffix(header, "?") {
			return true
		}
	}

	return false
}

// unitHeaders returns the program header of every ';'-separated unit of text, ignoring
// separators inside quoted strings.
func unitHeaders(text string) []string {
	text = strings.TrimRight(text, " \t\r\n;")

	var headers []string
	appendHeader := func(unit string) {
		unit = strings.TrimSpace(unit)
		if end := strings.IndexAny(unit, " \t"); end >= 0 {
			unit = unit[:end]
		}
		if unit != "" {
			headers = append(headers, unit)
		}
	}

	start := 0
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ';':
			appendHeader(text[start:i])
			start = i + 1
		}
	}
	appendHeader(text[start:])

	return headers
}
