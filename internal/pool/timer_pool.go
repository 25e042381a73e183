// Package pool provides pooled timers for the polling loops of go-scpi.
package pool

import (
	"context"
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a running timer for d from the pool.
//
// Return it with PutTimer once it is no longer read.
func GetTimer(d time.Duration) *time.Timer {
	if t, ok := timerPool.Get().(*time.Timer); ok {
		// since go1.23 Reset discards any pending tick
		t.Reset(d)
		return t
	}

	return time.NewTimer(d)
}

// PutTimer stops t and returns it to the pool. t cannot be used afterwards.
func PutTimer(t *time.Timer) {
	t.Stop()
	timerPool.Put(t)
}

// Sleep pauses for d using a pooled timer. It returns ctx.Err() if ctx is
// done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := GetTimer(d)
	defer PutTimer(t)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poll calls fn every interval until it reports done, returns an error, or ctx is done.
// fn is called once immediately.
func Poll(ctx context.Context, interval time.Duration, fn func(ctx context.Context) (bool, error)) error {
	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if err := Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
