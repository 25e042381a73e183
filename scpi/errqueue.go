package scpi

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-scpi/logger"
)

// ErrorQueueEntry is one entry of the instrument error queue.
type ErrorQueueEntry struct {
	Code    int
	Message string
}

// IsNoError reports whether the entry is the "queue empty" marker, code 0.
func (e ErrorQueueEntry) IsNoError() bool {
	return e.Code == 0
}

// String renders the entry in instrument form, code,"message".
func (e ErrorQueueEntry) String() string {
	return strconv.Itoa(e.Code) + "," + Quote(e.Message, '"')
}

// ParseErrorQueueEntry parses a reply to SYST:ERR? such as `-113,"Undefined header"`.
// The message may contain commas and may be unquoted. A reply holding only a code is
// accepted with an empty message.
func ParseErrorQueueEntry(reply string) (ErrorQueueEntry, error) {
	reply = strings.TrimSpace(reply)

	codeText, msg, _ := strings.Cut(reply, ",")
	code, err := strconv.Atoi(strings.TrimSpace(codeText))
	if err != nil {
		return ErrorQueueEntry{}, fmt.Errorf("%w: %q", ErrInvalidErrorEntry, reply)
	}

	return ErrorQueueEntry{Code: code, Message: Unquote(strings.TrimSpace(msg))}, nil
}

// Exchanger performs one exchange inside a transaction. *Tx implements it.
type Exchanger interface {
	Exchange(ctx context.Context, msg Message, timeout time.Duration) ([]byte, error)
}

var _ Exchanger = (*Tx)(nil)

// ErrorQueue drains the instrument error queue.
type ErrorQueue struct {
	query   Message
	timeout time.Duration
	logger  logger.Logger
}

// NewErrorQueue creates a drainer that pops entries with query. A non-positive timeout
// uses the exchanger default for each pop.
func NewErrorQueue(query string, timeout time.Duration, l logger.Logger) *ErrorQueue {
	if query == "" {
		query = DefaultErrorQuery
	}
	if l == nil {
		l = logger.GetLogger()
	}

	return &ErrorQueue{query: NewQuery(query), timeout: timeout, logger: l}
}

// Drain pops entries until the instrument reports code 0 or maxEntries entries were
// read. The code 0 entry is not included. A non-positive maxEntries selects
// DefaultMaxErrorEntries. Entries read before a failure are returned with the error.
func (q *ErrorQueue) Drain(ctx context.Context, ex Exchanger, maxEntries int) ([]ErrorQueueEntry, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxErrorEntries
	}

	var entries []ErrorQueueEntry
	for range maxEntries {
		reply, err := ex.Exchange(ctx, q.query, q.timeout)
		if err != nil {
			return entries, fmt.Errorf("scpi: drain error queue: %w", err)
		}

		entry, err := ParseErrorQueueEntry(string(reply))
		if err != nil {
			return entries, err
		}
		if entry.IsNoError() {
			return entries, nil
		}

		q.logger.Warn("instrument error", "code", entry.Code, "message", entry.Message)
		entries = append(entries, entry)
	}

	q.logger.Warn("error queue drain stopped at entry limit", "limit", maxEntries)

	return entries, nil
}
