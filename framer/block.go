package framer

import (
	"bytes"
	"fmt"
)

// maxBlockDigits is the largest digit count an IEEE 488.2 block header can declare.
const maxBlockDigits = 9

// NextBlock extracts the next IEEE 488.2 arbitrary block and returns its data bytes.
//
// Leading ASCII whitespace before '#' is skipped. A definite block "#<n><len><data>" is
// complete once its declared data bytes are buffered. With the trailer option enabled,
// a terminator following the data is consumed, and when the buffer ends before the
// whole terminator arrived its remaining bytes are skipped as they are fed. A trailer
// that does not match the terminator is left in the buffer. An indefinite block
// "#0<data><terminator>" ends at the first terminator.
//
// It returns ErrInvalidBlockHeader for malformed headers and ErrFrameTooLarge when the
// declared length cannot fit within the maximum size.
func (f *Framer) NextBlock() (data []byte, ok bool, err error) {
	if f.failed {
		return nil, false, ErrFrameTooLarge
	}
	f.skipPendingTrailer()

	start := 0
	for start < len(f.buf) && isSpace(f.buf[start]) {
		start++
	}
	if start == len(f.buf) {
		return nil, false, nil
	}
	if f.buf[start] != '#' {
		return nil, false, fmt.Errorf("%w: expected '#', got %q", ErrInvalidBlockHeader, f.buf[start])
	}
	if len(f.buf) < start+2 {
		return nil, false, nil
	}

	nd := f.buf[start+1]
	if !isDigit(nd) {
		return nil, false, fmt.Errorf("%w: digit count %q", ErrInvalidBlockHeader, nd)
	}

	if nd == '0' {
		return f.nextIndefiniteBlock(start + 2)
	}

	digits := int(nd - '0')
	headerEnd := start + 2 + digits
	if len(f.buf) < headerEnd {
		return nil, false, nil
	}

	length := 0
	for _, c := range f.buf[start+2 : headerEnd] {
		if !isDigit(c) {
			return nil, false, fmt.Errorf("%w: length digit %q", ErrInvalidBlockHeader, c)
		}
		length = length*10 + int(c-'0')
	}

	if 2+digits+length > f.maxSize {
		f.failed = true
		return nil, false, fmt.Errorf("%w: block declares %d bytes, limit %d", ErrFrameTooLarge, length, f.maxSize)
	}

	dataEnd := headerEnd + length
	if len(f.buf) < dataEnd {
		return nil, false, nil
	}

	data = bytes.Clone(f.buf[headerEnd:dataEnd])
	consumed := dataEnd
	if f.trailer {
		consumed += f.matchTrailer(dataEnd)
	}
	f.consume(consumed)

	return data, true, nil
}

// matchTrailer returns the number of terminator bytes buffered at off. When the buffer
// ends inside the terminator, the missing bytes are remembered as a pending trailer.
func (f *Framer) matchTrailer(off int) int {
	avail := f.buf[off:]
	n := 0
	for n < len(f.term) && n < len(avail) && avail[n] == f.term[n] {
		n++
	}

	switch {
	case n == len(f.term):
		return n
	case n == len(avail):
		f.pending = f.term[n:]
		return n
	default:
		return 0
	}
}

// skipPendingTrailer drops the leading bytes of the buffer that complete the trailer of
// the previous block. Any other byte cancels the pending trailer.
func (f *Framer) skipPendingTrailer() {
	n := 0
	for len(f.pending) > 0 && n < len(f.buf) {
		if f.buf[n] != f.pending[0] {
			f.pending = nil
			break
		}
		f.pending = f.pending[1:]
		n++
	}
	if n > 0 {
		f.consume(n)
	}
}

func (f *Framer) nextIndefiniteBlock(dataStart int) ([]byte, bool, error) {
	idx := bytes.Index(f.buf[dataStart:], f.term)
	if idx < 0 {
		return nil, false, nil
	}

	data := bytes.Clone(f.buf[dataStart : dataStart+idx])
	f.consume(dataStart + idx + len(f.term))

	return data, true, nil
}

// ParseBlockHeader parses a complete definite-length header at the start of b and returns
// the header size and declared data length. It is exported for callers that stream
// block data without buffering it in a Framer.
func ParseBlockHeader(b []byte) (headerLen int, dataLen int, err error) {
	if len(b) < 2 || b[0] != '#' || !isDigit(b[1]) || b[1] == '0' {
		return 0, 0, ErrInvalidBlockHeader
	}

	digits := int(b[1] - '0')
	if digits > maxBlockDigits || len(b) < 2+digits {
		return 0, 0, ErrInvalidBlockHeader
	}

	for _, c := range b[2 : 2+digits] {
		if !isDigit(c) {
			return 0, 0, ErrInvalidBlockHeader
		}
		dataLen = dataLen*10 + int(c-'0')
	}

	return 2 + digits, dataLen, nil
}

// EncodeBlock formats data as a definite-length arbitrary block.
func EncodeBlock(data []byte) []byte {
	length := fmt.Sprintf("%d", len(data))
	out := make([]byte, 0, 2+len(length)+len(data))
	out = append(out, '#', byte('0'+len(length)))
	out = append(out, length...)

	return append(out, data...)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
