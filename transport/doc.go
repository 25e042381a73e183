// Package transport provides the byte-stream connection to an SCPI instrument
// listening on a raw TCP socket, conventionally port 5025.
//
// A Transport is half-duplex by usage: one goroutine sends a message and then
// reads reply chunks until its framer recognizes a complete frame. Reads are
// bounded by an absolute deadline and can be aborted from another goroutine
// with Interrupt, which is how context cancellation reaches a blocked read.
//
// Errors are reported through four sentinels that callers test with errors.Is:
//
//   - ErrConnect: the TCP connection could not be established.
//   - ErrWrite: an outbound write failed or was partial.
//   - ErrTimeout: no bytes arrived before the read deadline.
//   - ErrConnectionClosed: the peer closed or reset the connection.
package transport
