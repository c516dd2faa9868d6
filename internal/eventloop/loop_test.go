package eventloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcEvent struct {
	frame FrameNumber
	fn    func(ctx context.Context) error
}

func (e *funcEvent) TargetFrame() FrameNumber         { return e.frame }
func (e *funcEvent) Execute(ctx context.Context) error { return e.fn(ctx) }

func newTestLoop() *EventLoop {
	return New(1, nil, nil)
}

func TestEventLoop_FiresEventsInFrameOrder(t *testing.T) {
	loop := newTestLoop()

	var mu sync.Mutex
	var order []int

	record := func(n int) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, n)
			return nil
		}
	}

	loop.ScheduleEvent(&funcEvent{frame: 5, fn: record(5)})
	loop.ScheduleEvent(&funcEvent{frame: 2, fn: record(2)})
	loop.ScheduleEvent(&funcEvent{frame: 3, fn: record(3)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, time.Second, time.Millisecond)

	loop.Stop()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{2, 3, 5}, order)
}

func TestEventLoop_AbsorbsEventError(t *testing.T) {
	loop := newTestLoop()

	var fired atomic.Bool
	loop.ScheduleEvent(&funcEvent{frame: 1, fn: func(context.Context) error {
		return errors.New("boom")
	}})
	loop.ScheduleEvent(&funcEvent{frame: 2, fn: func(context.Context) error {
		fired.Store(true)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	require.Eventually(t, fired.Load, time.Second, time.Millisecond)
	assert.EqualValues(t, 1, loop.metrics.GetEventExecutionFailures())

	loop.Stop()
	<-done
}

func TestEventLoop_AbsorbsEventPanic(t *testing.T) {
	loop := newTestLoop()

	var fired atomic.Bool
	loop.ScheduleEvent(&funcEvent{frame: 1, fn: func(context.Context) error {
		panic("kaboom")
	}})
	loop.ScheduleEvent(&funcEvent{frame: 2, fn: func(context.Context) error {
		fired.Store(true)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	require.Eventually(t, fired.Load, time.Second, time.Millisecond)

	loop.Stop()
	<-done
}

func TestEventLoop_ScheduleEventFromConcurrentGoroutines(t *testing.T) {
	loop := newTestLoop()

	const n = 100
	var wg sync.WaitGroup
	var count atomic.Int64

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loop.ScheduleEvent(&funcEvent{frame: FrameNumber(i%10 + 1), fn: func(context.Context) error {
				count.Add(1)
				return nil
			}})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, loop.QueueSize())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return count.Load() == n }, 2*time.Second, time.Millisecond)

	loop.Stop()
	<-done
}

func TestEventLoop_CurrentAndNextFrameNumber(t *testing.T) {
	loop := newTestLoop()
	assert.EqualValues(t, 0, loop.CurrentFrameNumber())
	assert.EqualValues(t, 1, loop.NextFrameNumber())
}
