// Package framer splits the inbound byte stream of an SCPI socket session into
// complete response frames.
//
// SCPI over raw TCP has no length prefix. A reply ends at a configurable
// terminator sequence (usually "\n"), and binary payloads are carried as
// IEEE 488.2 arbitrary blocks:
//
//	#<n><n decimal digits: length><length bytes of data>   definite length
//	#0<data><terminator>                                   indefinite length
//
// A Framer is fed the chunks produced by a transport and hands back frames
// without the terminator. Chunk boundaries are arbitrary: a terminator or a
// block header may be split across any number of Feed calls.
//
// The residual buffer is bounded. When it grows beyond the configured maximum
// without a complete frame, the framer enters a failed state and every later
// Feed, Next or NextBlock returns ErrFrameTooLarge until Reset is called.
//
// A Framer is not safe for concurrent use; it belongs to a single transaction
// at a time.
package framer
