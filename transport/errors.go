package transport

import "errors"

var (
	// ErrConnect indicates the TCP connection could not be established (refused,
	// unreachable, name resolution failure or connect timeout).
	ErrConnect = errors.New("transport: connect failed")
	// ErrWrite indicates an outbound write failed.
	ErrWrite = errors.New("transport: write failed")
	// ErrTimeout indicates no bytes arrived before the read deadline or the read was interrupted.
	ErrTimeout = errors.New("transport: read timeout")
	// ErrConnectionClosed indicates the connection was closed by the peer, reset, or closed locally.
	ErrConnectionClosed = errors.New("transport: connection closed")
)
