package playback

import (
	"context"
	"fmt"

	"github.com/opsnlops/creature-server/internal/creature"
	"github.com/opsnlops/creature-server/internal/dmx"
	"github.com/opsnlops/creature-server/internal/eventloop"
	"github.com/opsnlops/creature-server/internal/logging"
	"github.com/opsnlops/creature-server/internal/metrics"
)

// CreatureLoader is the external store collaborator consulted on a cache
// miss (spec §4.5 Creature resolution).
type CreatureLoader interface {
	Load(ctx context.Context, id string) (creature.Creature, error)
}

// RunnerEvent is the recurring PlaybackRunnerEvent (spec §4.5, C8): each
// firing emits due DMX frames, pumps the audio transport, and either
// reschedules itself or tears the session down.
type RunnerEvent struct {
	frame         eventloop.FrameNumber
	session       *Session
	loop          *eventloop.EventLoop
	ticksPerFrame eventloop.FrameNumber

	cache  creature.Cache
	loader CreatureLoader
	sink   dmx.Sink

	log     logging.Logger
	metrics *metrics.SystemCounters
}

// NewRunnerEvent builds the runner firing scheduled at frame for session.
// ticksPerFrame is animation.MillisecondsPerFrame / T, precomputed by the
// scheduler so the runner never has to know the tick period.
func NewRunnerEvent(
	frame eventloop.FrameNumber,
	session *Session,
	loop *eventloop.EventLoop,
	ticksPerFrame eventloop.FrameNumber,
	cache creature.Cache,
	loader CreatureLoader,
	sink dmx.Sink,
	log logging.Logger,
	m *metrics.SystemCounters,
) *RunnerEvent {
	if log == nil {
		log = logging.NewNop()
	}
	return &RunnerEvent{
		frame:         frame,
		session:       session,
		loop:          loop,
		ticksPerFrame: ticksPerFrame,
		cache:         cache,
		loader:        loader,
		sink:          sink,
		log:           log,
		metrics:       m,
	}
}

func (e *RunnerEvent) TargetFrame() eventloop.FrameNumber { return e.frame }

// Execute implements the firing contract of spec §4.5 verbatim.
func (e *RunnerEvent) Execute(ctx context.Context) error {
	s := e.session

	if s.Cancelled() {
		e.teardown(ctx, true)
		return nil
	}

	if s.markFirstObserved() {
		s.fireOnStart()
	}

	for i := range s.tracks {
		track := &s.tracks[i]
		if track.Finished() || e.frame < track.NextDispatchFrame {
			continue
		}

		cr, err := e.resolveCreature(ctx, track.CreatureID)
		if err != nil {
			e.log.Error("creature resolution failed, ending session",
				logging.String("creature_id", track.CreatureID), logging.Err(err))
			e.teardown(ctx, false)
			if e.metrics != nil {
				e.metrics.IncrementSessionsFatalErrors()
			}
			return fmt.Errorf("resolving creature %s: %w", track.CreatureID, err)
		}

		payload := track.Frames[track.Cursor]
		e.loop.ScheduleEvent(eventloop.NewDmxEmitEvent(e.frame, s.Universe, cr.ChannelOffset, payload, e.sink, e.metrics))

		track.Cursor++
		track.NextDispatchFrame = e.frame + e.ticksPerFrame
	}

	if tr := s.AudioTransport(); tr != nil && tr.NeedsPerFrameDispatch() {
		tr.DispatchNextChunk(e.frame)
	}

	if s.allTracksFinished() {
		e.teardown(ctx, false)
		if e.metrics != nil {
			e.metrics.IncrementAnimationsPlayed()
		}
		return nil
	}

	e.loop.ScheduleEvent(NewRunnerEvent(e.frame+e.ticksPerFrame, s, e.loop, e.ticksPerFrame, e.cache, e.loader, e.sink, e.log, e.metrics))
	return nil
}

// teardown stops the audio transport (if any) and fires on_finish exactly
// once; it deliberately does not touch the DMX sink — creatures are left in
// their last commanded pose (spec §4.5 Teardown policy).
func (e *RunnerEvent) teardown(_ context.Context, cancelled bool) {
	if tr := e.session.AudioTransport(); tr != nil {
		tr.Stop()
	}
	e.session.fireOnFinish()

	if cancelled && e.metrics != nil {
		e.metrics.IncrementSessionsCancelled()
	}
}

// resolveCreature consults the process-wide cache, falling back to the
// external store on a miss and populating the cache on success (spec §4.5
// Creature resolution).
func (e *RunnerEvent) resolveCreature(ctx context.Context, id string) (creature.Creature, error) {
	if cr, ok := e.cache.Get(ctx, id); ok {
		return cr, nil
	}

	cr, err := e.loader.Load(ctx, id)
	if err != nil {
		return creature.Creature{}, err
	}
	e.cache.Put(ctx, cr)
	return cr, nil
}
