package framer

import "errors"

var (
	// ErrFrameTooLarge is returned when the buffered data exceeds the maximum frame size
	// before a complete frame is recognized.
	ErrFrameTooLarge = errors.New("framer: frame exceeds maximum size")
	// ErrInvalidBlockHeader is returned when a binary response does not start with a
	// valid IEEE 488.2 arbitrary block header.
	ErrInvalidBlockHeader = errors.New("framer: invalid arbitrary block header")
	// ErrEmptyTerminator is returned when the terminator option is empty.
	ErrEmptyTerminator = errors.New("framer: terminator must not be empty")
	// ErrInvalidMaxSize is returned when the maximum frame size is out of range.
	ErrInvalidMaxSize = errors.New("framer: invalid maximum frame size")
)
