package framer

import (
	"bytes"
	"fmt"
)

const (
	// DefaultMaxSize is the default bound of the residual buffer, 32 MiB.
	DefaultMaxSize = 32 << 20
	// MinMaxSize is the smallest accepted maximum frame size.
	MinMaxSize = 16
	// MaxMaxSize is the largest accepted maximum frame size, 1 GiB.
	MaxMaxSize = 1 << 30
)

// DefaultTerminator is the SCPI newline terminator.
var DefaultTerminator = []byte{'\n'}

// Option configures a Framer.
type Option interface {
	apply(*Framer) error
}

type optFunc func(*Framer) error

func (f optFunc) apply(fr *Framer) error {
	return f(fr)
}

// WithTerminator sets the frame terminator. The default is "\n".
func WithTerminator(term []byte) Option {
	return optFunc(func(fr *Framer) error {
		if len(term) == 0 {
			return ErrEmptyTerminator
		}
		fr.term = bytes.Clone(term)

		return nil
	})
}

// WithMaxSize sets the bound of the residual buffer, in bytes.
//
// The value should be in the range [MinMaxSize, MaxMaxSize].
func WithMaxSize(size int) Option {
	return optFunc(func(fr *Framer) error {
		if size < MinMaxSize || size > MaxMaxSize {
			return fmt.Errorf("%w: %d, must be in [%d, %d]", ErrInvalidMaxSize, size, MinMaxSize, MaxMaxSize)
		}
		fr.maxSize = size

		return nil
	})
}

// WithBlockTrailer controls whether the terminator following a definite-length block is
// consumed. When enabled (the default) a trailer already buffered is consumed with the
// block, and one arriving after the block was returned is skipped before the next frame,
// so it is never mistaken for the reply of the next query. A block is returned as soon
// as its declared data is buffered either way.
func WithBlockTrailer(enabled bool) Option {
	return optFunc(func(fr *Framer) error {
		fr.trailer = enabled
		return nil
	})
}

// Framer accumulates received bytes and extracts complete frames.
type Framer struct {
	term    []byte
	maxSize int
	trailer bool

	buf []byte
	// scanFrom is the offset where the next terminator search resumes.
	scanFrom int
	failed   bool
	// pending holds the trailer bytes still expected after the last block.
	pending []byte
}

// New creates a Framer with the given options.
func New(opts ...Option) (*Framer, error) {
	fr := &Framer{
		term:    bytes.Clone(DefaultTerminator),
		maxSize: DefaultMaxSize,
		trailer: true,
	}

	for _, opt := range opts {
		if err := opt.apply(fr); err != nil {
			return nil, err
		}
	}

	return fr, nil
}

// Terminator returns a copy of the configured terminator.
func (f *Framer) Terminator() []byte {
	return bytes.Clone(f.term)
}

// MaxSize returns the bound of the residual buffer.
func (f *Framer) MaxSize() int {
	return f.maxSize
}

// Len returns the number of buffered bytes not yet returned as a frame.
func (f *Framer) Len() int {
	return len(f.buf)
}

// Failed reports whether the framer is in the failed state.
func (f *Framer) Failed() bool {
	return f.failed
}

// Reset discards all buffered bytes and clears the failed state. A pending block trailer
// survives a Reset of an empty buffer, since its bytes have not been received yet.
func (f *Framer) Reset() {
	if len(f.buf) > 0 {
		f.pending = nil
	}
	f.buf = f.buf[:0]
	f.scanFrom = 0
	f.failed = false
}

// Feed appends a received chunk to the residual buffer.
//
// It returns ErrFrameTooLarge when the buffer would exceed the maximum size while holding
// no terminator, and the framer stays failed until Reset.
func (f *Framer) Feed(chunk []byte) error {
	if f.failed {
		return ErrFrameTooLarge
	}

	f.buf = append(f.buf, chunk...)
	if len(f.buf) > f.maxSize && f.indexTerm() < 0 {
		f.failed = true
		return fmt.Errorf("%w: %d bytes buffered without terminator, limit %d", ErrFrameTooLarge, len(f.buf), f.maxSize)
	}

	return nil
}

// Next extracts the next terminator-delimited text frame. ok is false when no complete
// frame is buffered yet. The returned frame excludes the terminator and is never shared
// with the internal buffer.
func (f *Framer) Next() (frame []byte, ok bool, err error) {
	if f.failed {
		return nil, false, ErrFrameTooLarge
	}
	f.skipPendingTrailer()

	idx := f.indexTerm()
	if idx < 0 {
		return nil, false, nil
	}

	frame = bytes.Clone(f.buf[:idx])
	f.consume(idx + len(f.term))

	return frame, true, nil
}

// indexTerm finds the first terminator in the buffer, resuming from the point where the
// previous unsuccessful search stopped.
func (f *Framer) indexTerm() int {
	idx := bytes.Index(f.buf[f.scanFrom:], f.term)
	if idx >= 0 {
		return f.scanFrom + idx
	}

	// the tail may hold a terminator prefix
	f.scanFrom = max(0, len(f.buf)-len(f.term)+1)

	return -1
}

func (f *Framer) consume(n int) {
	rest := copy(f.buf, f.buf[n:])
	f.buf = f.buf[:rest]
	f.scanFrom = 0
}
