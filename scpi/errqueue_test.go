package scpi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeExchanger struct {
	replies []string
	calls   int
	err     error
}

func (f *fakeExchanger) Exchange(_ context.Context, msg Message, _ time.Duration) ([]byte, error) {
	f.calls++
	if !msg.IsQuery {
		return nil, errors.New("not a query")
	}
	if f.err != nil && f.calls > len(f.replies) {
		return nil, f.err
	}
	if f.calls > len(f.replies) {
		return []byte(`0,"No error"`), nil
	}

	return []byte(f.replies[f.calls-1]), nil
}

func TestParseErrorQueueEntry(t *testing.T) {
	tests := []struct {
		reply string
		entry ErrorQueueEntry
	}{
		{`0,"No error"`, ErrorQueueEntry{0, "No error"}},
		{`+0,"No error"`, ErrorQueueEntry{0, "No error"}},
		{`-113,"Undefined header"`, ErrorQueueEntry{-113, "Undefined header"}},
		{` -222 , "Data out of range;FREQ 1e15" `, ErrorQueueEntry{-222, "Data out of range;FREQ 1e15"}},
		{`-100,"Command error, see ""manual"""`, ErrorQueueEntry{-100, `Command error, see "manual"`}},
		{`-350,Queue overflow`, ErrorQueueEntry{-350, "Queue overflow"}},
		{`42`, ErrorQueueEntry{42, ""}},
	}

	for _, tt := range tests {
		entry, err := ParseErrorQueueEntry(tt.reply)
		require.NoError(t, err, tt.reply)
		require.Equal(t, tt.entry, entry, tt.reply)
	}

	for _, bad := range []string{"", "No error", `"x",1`} {
		_, err := ParseErrorQueueEntry(bad)
		require.ErrorIs(t, err, ErrInvalidErrorEntry, bad)
	}
}

func TestErrorQueueEntry_String(t *testing.T) {
	require.Equal(t, `-100,"see ""manual"""`, ErrorQueueEntry{-100, `see "manual"`}.String())
}

func TestErrorQueue_Drain(t *testing.T) {
	require := require.New(t)
	q := NewErrorQueue("", 0, nil)

	ex := &fakeExchanger{replies: []string{`-113,"Undefined header"`}}
	entries, err := q.Drain(t.Context(), ex, 0)
	require.NoError(err)
	require.Equal([]ErrorQueueEntry{{-113, "Undefined header"}}, entries)
	require.Equal(2, ex.calls)

	ex = &fakeExchanger{}
	entries, err = q.Drain(t.Context(), ex, 0)
	require.NoError(err)
	require.Empty(entries)
	require.Equal(1, ex.calls)
}

func TestErrorQueue_DrainTerminatesAtLimit(t *testing.T) {
	require := require.New(t)
	q := NewErrorQueue(DefaultErrorQuery, 0, nil)

	replies := make([]string, 100)
	for i := range replies {
		replies[i] = `-350,"Queue overflow"`
	}
	ex := &fakeExchanger{replies: replies}

	entries, err := q.Drain(t.Context(), ex, 4)
	require.NoError(err)
	require.Len(entries, 4)
	require.Equal(4, ex.calls)
}

func TestErrorQueue_DrainFailure(t *testing.T) {
	require := require.New(t)
	q := NewErrorQueue(DefaultErrorQuery, 0, nil)

	ex := &fakeExchanger{replies: []string{`-113,"Undefined header"`}, err: ErrTimeout}
	entries, err := q.Drain(t.Context(), ex, 0)
	require.ErrorIs(err, ErrTimeout)
	require.Len(entries, 1)

	ex = &fakeExchanger{replies: []string{"garbage"}}
	_, err = q.Drain(t.Context(), ex, 0)
	require.ErrorIs(err, ErrInvalidErrorEntry)
}
