package eventloop

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/opsnlops/creature-server/internal/logging"
	"github.com/opsnlops/creature-server/internal/metrics"
)

// EventLoop is the single authority over frame time: it is the only legal
// executor of events and the only legal reader of the queue (spec §2, §6).
// External goroutines may only call ScheduleEvent.
type EventLoop struct {
	periodMs uint32

	mu    sync.Mutex
	queue eventQueue

	frame    FrameNumber
	queueLen func() int

	stop     chan struct{}
	stopped  chan struct{}
	running  sync.Once
	stopOnce sync.Once

	log     logging.Logger
	metrics *metrics.SystemCounters
}

// New builds a stopped EventLoop ticking every periodMs milliseconds.
func New(periodMs uint32, log logging.Logger, m *metrics.SystemCounters) *EventLoop {
	if log == nil {
		log = logging.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	l := &EventLoop{
		periodMs: periodMs,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		log:      log,
		metrics:  m,
	}
	heap.Init(&l.queue)
	return l
}

// CurrentFrameNumber returns the frame currently executing (or the last one
// that completed, if called between ticks).
func (l *EventLoop) CurrentFrameNumber() FrameNumber {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frame
}

// NextFrameNumber is the earliest frame a newly scheduled event can still
// land on.
func (l *EventLoop) NextFrameNumber() FrameNumber {
	return l.CurrentFrameNumber() + 1
}

// QueueSize reports the number of events still waiting to fire.
func (l *EventLoop) QueueSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

// ScheduleEvent enqueues e for execution once the loop's frame counter
// reaches e.TargetFrame(). Safe to call from any goroutine.
func (l *EventLoop) ScheduleEvent(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	heap.Push(&l.queue, e)
}

// Run ticks the loop until ctx is cancelled or Stop is called. It must be
// invoked from its own goroutine; it blocks until the loop exits.
func (l *EventLoop) Run(ctx context.Context) {
	l.log.Info("event loop running")

	period := time.Duration(l.periodMs) * time.Millisecond
	nextTarget := time.Now().Add(period)

	defer close(l.stopped)

	for {
		select {
		case <-ctx.Done():
			l.log.Info("event loop stopped")
			return
		case <-l.stop:
			l.log.Info("event loop stopped")
			return
		default:
		}

		l.mu.Lock()
		l.frame++
		l.mu.Unlock()
		l.metrics.IncrementTotalFrames()

		l.drain(ctx)

		if remaining := time.Until(nextTarget); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				l.log.Info("event loop stopped")
				return
			case <-l.stop:
				timer.Stop()
				l.log.Info("event loop stopped")
				return
			}
		}

		nextTarget = nextTarget.Add(period)
	}
}

// drain executes every event whose target frame has arrived, keeping the
// queue locked for as short a time as possible: one pop per critical
// section, execution happens outside the lock.
func (l *EventLoop) drain(ctx context.Context) {
	current := l.CurrentFrameNumber()

	for {
		event, ok := l.popReady(current)
		if !ok {
			return
		}

		l.execute(ctx, event)
		l.metrics.IncrementEventsProcessed()
	}
}

func (l *EventLoop) popReady(current FrameNumber) (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.queue.Len() == 0 {
		return nil, false
	}
	if l.queue[0].TargetFrame() > current {
		return nil, false
	}
	return heap.Pop(&l.queue).(Event), true
}

// execute runs a single event, absorbing both returned errors and panics so
// one misbehaving event can never take down the loop (spec §7, loop-level
// errors are never fatal).
func (l *EventLoop) execute(ctx context.Context, event Event) {
	defer func() {
		if r := recover(); r != nil {
			l.metrics.IncrementEventExecutionFailures()
			l.log.Error("event panicked", logging.Any("recovered", r))
		}
	}()

	if err := event.Execute(ctx); err != nil {
		l.metrics.IncrementEventExecutionFailures()
		l.log.Error("event returned an error", logging.Err(err))
	}
}

// Stop requests the loop to exit after its current tick completes and
// blocks until it has. Safe to call more than once.
func (l *EventLoop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.stopped
}
