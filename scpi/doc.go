// Package scpi implements a synchronous SCPI session over a raw TCP socket.
//
// A Session owns one transport connection to an instrument and turns the
// buffered byte stream into request/response transactions:
//
//	sess, err := scpi.Dial(ctx, "192.168.1.10", 5025, scpi.WithReadTimeout(2*time.Second))
//	if err != nil {
//		return err
//	}
//	defer sess.Close()
//
//	id, err := sess.Query(ctx, "*IDN?")
//
// # Commands and queries
//
// A message whose last program header ends in '?' is a query and blocks until
// the reply frame arrives or the timeout fires. Anything else is a command and
// returns as soon as it is written. Command and Query force the expected kind;
// Execute classifies the message itself.
//
// # Transactions
//
// One transaction runs at a time per session. A second caller entering while a
// transaction is in progress fails immediately with ErrConcurrentAccess instead
// of queueing; callers that share a session across goroutines serialize
// themselves.
//
// # Timeouts
//
// A query that times out, or whose context is canceled, leaves the session
// Open. Replies that arrive late are discarded before the next query is sent.
// A broken connection (peer close, reset, failed write) moves the session to
// Faulted; only Close is accepted afterwards.
//
// # Error queue
//
// DrainErrors reads the instrument error queue (SYST:ERR? by default) until it
// reports code 0. In strict mode the queue is drained after every command and
// query inside the same transaction, and reported entries are returned as an
// *InstrumentError together with the valid primary result.
package scpi
