package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerPool(t *testing.T) {
	t.Run("Get and Put", func(t *testing.T) {
		timer1 := GetTimer(10 * time.Millisecond)
		require.NotNil(t, timer1)
		PutTimer(timer1)

		timer2 := GetTimer(20 * time.Millisecond)
		require.NotNil(t, timer2)
		<-timer2.C
		PutTimer(timer2)
	})

	t.Run("Put Active Timer", func(t *testing.T) {
		timer1 := GetTimer(100 * time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		PutTimer(timer1)

		begin := time.Now()
		timer2 := GetTimer(150 * time.Millisecond)
		select {
		case tt := <-timer2.C:
			require.GreaterOrEqual(t, tt.Sub(begin), 130*time.Millisecond)
		case <-time.After(300 * time.Millisecond):
			t.Fatal("timer2 should have fired")
		}
	})

	t.Run("Concurrency", func(t *testing.T) {
		var wg sync.WaitGroup
		for range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(5 * time.Millisecond)
				defer PutTimer(timer)
				<-timer.C
			}()
		}
		wg.Wait()
	})
}

func TestSleep(t *testing.T) {
	require := require.New(t)

	begin := time.Now()
	require.NoError(Sleep(context.Background(), 30*time.Millisecond))
	require.GreaterOrEqual(time.Since(begin), 30*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	begin = time.Now()
	require.ErrorIs(Sleep(ctx, time.Second), context.DeadlineExceeded)
	require.Less(time.Since(begin), 500*time.Millisecond)

	canceled, cancel2 := context.WithCancel(context.Background())
	cancel2()
	require.ErrorIs(Sleep(canceled, 0), context.Canceled)
}

func TestPoll(t *testing.T) {
	t.Run("done after polls", func(t *testing.T) {
		calls := 0
		err := Poll(t.Context(), 5*time.Millisecond, func(context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("error stops polling", func(t *testing.T) {
		errBoom := errors.New("boom")
		calls := 0
		err := Poll(t.Context(), time.Millisecond, func(context.Context) (bool, error) {
			calls++
			return false, errBoom
		})
		require.ErrorIs(t, err, errBoom)
		require.Equal(t, 1, calls)
	})

	t.Run("context deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
		defer cancel()

		err := Poll(ctx, 10*time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
