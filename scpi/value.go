package scpi

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseBool parses an SCPI boolean reply: "1"/"ON" is true, "0"/"OFF" is false.
func ParseBool(s string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "1", "ON":
		return true, nil
	case "0", "OFF":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, s)
	}
}

// FormatBool renders b as SCPI "1" or "0".
func FormatBool(b bool) string {
	if b {
		return "1"
	}

	return "0"
}

// ParseInt parses a decimal integer reply such as "+12".
func ParseInt(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	return v, nil
}

// ParseUint parses an unsigned decimal reply.
func ParseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(s), "+"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	return v, nil
}

// ParseFloat parses a numeric reply such as "+1.00000000E+009".
func ParseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	return v, nil
}

// ParseFloats parses a comma separated list of numbers, the ASCII trace format.
func ParseFloats(s string) ([]float64, error) {
	items := SplitList(s)
	out := make([]float64, len(items))
	for i, item := range items {
		v, err := ParseFloat(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = v
	}

	return out, nil
}

// ParseString trims and unquotes a string reply.
func ParseString(s string) string {
	return Unquote(strings.TrimSpace(s))
}

// IsQuoted reports whether s is enclosed in matching single or double quotes.
func IsQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	q := s[0]

	return (q == '"' || q == '\'') && s[len(s)-1] == q
}

// Quote encloses s in q, doubling any q inside s as IEEE 488.2 string data requires.
func Quote(s string, q byte) string {
	quote := string(q)
	return quote + strings.ReplaceAll(s, quote, quote+quote) + quote
}

// Unquote removes enclosing quotes and collapses doubled inner quotes. Unquoted input
// is returned unchanged.
func Unquote(s string) string {
	if !IsQuoted(s) {
		return s
	}
	quote := s[:1]

	return strings.ReplaceAll(s[1:len(s)-1], quote+quote, quote)
}

// SplitList splits a comma separated reply. Commas inside quoted strings do not split,
// and each item is trimmed. An empty or blank reply yields an empty list.
func SplitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}

	var items []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ',':
			items = append(items, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}

	return append(items, strings.TrimSpace(s[start:]))
}

// IndexName is one entry of an index/name catalog reply such as
// `1,'Trc1',2,'Trc2'`.
type IndexName struct {
	Index uint
	Name  string
}

// ParseIndexNames parses an alternating index/name list. Names are unquoted.
func ParseIndexNames(s string) ([]IndexName, error) {
	items := SplitList(s)
	if len(items)%2 != 0 {
		return nil, fmt.Errorf("%w: index/name list has odd length %d", ErrInvalidValue, len(items))
	}

	out := make([]IndexName, 0, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		idx, err := ParseUint(Unquote(items[i]))
		if err != nil {
			return nil, fmt.Errorf("index %q: %w", items[i], err)
		}
		out = append(out, IndexName{Index: uint(idx), Name: Unquote(items[i+1])})
	}

	return out, nil
}

// Indexes returns the indexes of list in order.
func Indexes(list []IndexName) []uint {
	out := make([]uint, len(list))
	for i, in := range list {
		out[i] = in.Index
	}

	return out
}

// Names returns the names of list in order.
func Names(list []IndexName) []string {
	out := make([]string, len(list))
	for i, in := range list {
		out[i] = in.Name
	}

	return out
}

// DecodeFloat32s decodes a REAL,32 binary block payload.
func DecodeFloat32s(data []byte, order binary.ByteOrder) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 4", ErrInvalidValue, len(data))
	}

	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(order.Uint32(data[i*4:]))
	}

	return out, nil
}

// DecodeFloat64s decodes a REAL,64 binary block payload.
func DecodeFloat64s(data []byte, order binary.ByteOrder) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 8", ErrInvalidValue, len(data))
	}

	out := make([]float64, len(data)/8)
	for i := range out {
		out[i] = math.Float64frombits(order.Uint64(data[i*8:]))
	}

	return out, nil
}

// DecodeComplex128s decodes a REAL,64 payload of interleaved real/imaginary pairs.
func DecodeComplex128s(data []byte, order binary.ByteOrder) ([]complex128, error) {
	if len(data)%16 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 16", ErrInvalidValue, len(data))
	}

	values, err := DecodeFloat64s(data, order)
	if err != nil {
		return nil, err
	}

	out := make([]complex128, len(values)/2)
	for i := range out {
		out[i] = complex(values[2*i], values[2*i+1])
	}

	return out, nil
}
