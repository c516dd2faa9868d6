package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsnlops/creature-server/internal/animation"
	"github.com/opsnlops/creature-server/internal/creature"
	"github.com/opsnlops/creature-server/internal/dmx"
	"github.com/opsnlops/creature-server/internal/eventloop"
	"github.com/opsnlops/creature-server/internal/metrics"
)

type stubLoader struct {
	creatures map[string]creature.Creature
	err       error
}

func (l *stubLoader) Load(_ context.Context, id string) (creature.Creature, error) {
	if l.err != nil {
		return creature.Creature{}, l.err
	}
	cr, ok := l.creatures[id]
	if !ok {
		return creature.Creature{}, errors.New("not found")
	}
	return cr, nil
}

func newTestRunner(t *testing.T, s *Session, loader CreatureLoader) (*RunnerEvent, *eventloop.EventLoop, *dmx.MemorySink) {
	t.Helper()
	loop := eventloop.New(1, nil, nil)
	sink := dmx.NewMemorySink()
	cache := creature.NewMemoryCache()
	m := metrics.New()
	ev := NewRunnerEvent(s.StartingFrame(), s, loop, 20, cache, loader, sink, nil, m)
	return ev, loop, sink
}

// runLoopUntilIdle runs loop until every queued event (the DmxEmit events a
// runner firing enqueued, plus any rescheduled firing) has executed.
func runLoopUntilIdle(t *testing.T, loop *eventloop.EventLoop) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)
	require.Eventually(t, func() bool { return loop.QueueSize() == 0 }, 2*time.Second, time.Millisecond)
	loop.Stop()
}

func TestRunnerEvent_FiresOnStartOnceAndEmitsInTrackOrder(t *testing.T) {
	s := New(testAnimation(), 7, 100, nil)
	var started int
	s.SetOnStart(func() { started++ })

	loader := &stubLoader{creatures: map[string]creature.Creature{
		"creature-a": {ID: "creature-a", ChannelOffset: 10},
		"creature-b": {ID: "creature-b", ChannelOffset: 20},
	}}
	ev, loop, sink := newTestRunner(t, s, loader)

	require.NoError(t, ev.Execute(context.Background()))
	assert.Equal(t, 1, started)

	// Cancel so the rescheduled firing emits nothing more, then execute the
	// queued DmxEmit events.
	s.Cancel()
	runLoopUntilIdle(t, loop)

	frames := sink.Frames()
	require.Len(t, frames, 2)
	assert.EqualValues(t, 10, frames[0].Offset)
	assert.EqualValues(t, 20, frames[1].Offset)
}

func TestRunnerEvent_CancelledSessionTearsDownWithoutReschedule(t *testing.T) {
	s := New(testAnimation(), 7, 100, nil)
	var finished int
	s.SetOnFinish(func() { finished++ })
	s.Cancel()

	ev, loop, sink := newTestRunner(t, s, &stubLoader{})

	require.NoError(t, ev.Execute(context.Background()))
	assert.Equal(t, 1, finished)
	assert.Empty(t, sink.Frames())
	assert.Equal(t, 0, loop.QueueSize())
}

func TestRunnerEvent_CreatureLoadFailureTearsDownSession(t *testing.T) {
	s := New(testAnimation(), 7, 100, nil)
	var finished int
	s.SetOnFinish(func() { finished++ })

	ev, loop, _ := newTestRunner(t, s, &stubLoader{err: errors.New("store down")})

	err := ev.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, finished)
	assert.Equal(t, 0, loop.QueueSize())
}

func TestRunnerEvent_NaturalCompletionTearsDownAndDoesNotReschedule(t *testing.T) {
	anim := animation.Animation{
		ID:                   "anim-short",
		MillisecondsPerFrame: 20,
		Tracks: []animation.Track{
			{CreatureID: "creature-a", Frames: [][]byte{{1}}},
		},
	}
	s := New(anim, 7, 100, nil)
	var finished int
	s.SetOnFinish(func() { finished++ })

	loader := &stubLoader{creatures: map[string]creature.Creature{"creature-a": {ID: "creature-a"}}}
	ev, loop, sink := newTestRunner(t, s, loader)

	require.NoError(t, ev.Execute(context.Background()))
	assert.Equal(t, 1, finished)
	// Only the DmxEmit event is queued; the runner did not reschedule itself.
	assert.Equal(t, 1, loop.QueueSize())

	runLoopUntilIdle(t, loop)
	assert.Len(t, sink.Frames(), 1)
}

func TestRunnerEvent_ReschedulesSelfWhenTracksRemain(t *testing.T) {
	s := New(testAnimation(), 7, 100, nil)
	loader := &stubLoader{creatures: map[string]creature.Creature{
		"creature-a": {ID: "creature-a"},
		"creature-b": {ID: "creature-b"},
	}}
	ev, loop, _ := newTestRunner(t, s, loader)

	require.NoError(t, ev.Execute(context.Background()))
	// Two DmxEmit events plus the runner's next firing.
	assert.Equal(t, 3, loop.QueueSize())
}

func TestRunnerEvent_SkipsTrackNotYetDue(t *testing.T) {
	anim := testAnimation()
	s := New(anim, 7, 100, nil)
	// Push track b's next dispatch into the future.
	s.tracks[1].NextDispatchFrame = 500

	loader := &stubLoader{creatures: map[string]creature.Creature{
		"creature-a": {ID: "creature-a"},
		"creature-b": {ID: "creature-b"},
	}}
	ev, loop, sink := newTestRunner(t, s, loader)

	require.NoError(t, ev.Execute(context.Background()))

	// Cancel so the rescheduled firing emits nothing more, then execute the
	// queued DmxEmit events.
	s.Cancel()
	runLoopUntilIdle(t, loop)
	assert.Len(t, sink.Frames(), 1)
}
