// Package playback implements PlaybackSession and PlaybackRunnerEvent
// (spec §4.4, §4.5, C7/C8): the per-playback state container and the
// recurring event that drains it one animation tick at a time.
package playback

import (
	"sync"
	"sync/atomic"

	"github.com/opsnlops/creature-server/internal/animation"
	"github.com/opsnlops/creature-server/internal/audio/stream"
	"github.com/opsnlops/creature-server/internal/audio/transport"
	"github.com/opsnlops/creature-server/internal/eventloop"
	"github.com/opsnlops/creature-server/internal/observability"
)

// TrackState is one track's cursor into its pre-decoded frame buffer
// (spec §3).
type TrackState struct {
	CreatureID        string
	Frames            [][]byte
	Cursor            int
	NextDispatchFrame eventloop.FrameNumber
}

// Finished reports whether every frame in this track has been emitted.
func (t *TrackState) Finished() bool {
	return t.Cursor >= len(t.Frames)
}

// Session is the per-playback state container (spec §4.4, C7). It is built
// once by the scheduler and from then on mutated only by the runner
// (track cursors) and by any goroutine calling Cancel. Not copyable in
// spirit: always passed and stored by pointer.
type Session struct {
	Animation animation.Animation
	Universe  uint32

	mu            sync.Mutex
	startingFrame eventloop.FrameNumber
	firstObserved bool
	tracks        []TrackState

	audioBuffer    *stream.Buffer
	audioTransport transport.Transport

	cancelled atomic.Bool
	finished  atomic.Bool

	onStart  func()
	onFinish func()

	onStartOnce  sync.Once
	onFinishOnce sync.Once

	span observability.Span
}

// New constructs a session with every track's frames decoded (already
// resident in the Animation value, which the core treats as immutable
// input) and every TrackState.NextDispatchFrame initialized to
// startingFrame (spec §4.4 Construction).
func New(anim animation.Animation, universe uint32, startingFrame eventloop.FrameNumber, span observability.Span) *Session {
	tracks := make([]TrackState, len(anim.Tracks))
	for i, tr := range anim.Tracks {
		tracks[i] = TrackState{
			CreatureID:        tr.CreatureID,
			Frames:            tr.Frames,
			NextDispatchFrame: startingFrame,
		}
	}

	return &Session{
		Animation:     anim,
		Universe:      universe,
		startingFrame: startingFrame,
		tracks:        tracks,
		span:          span,
	}
}

// SetStartingFrame shifts the effective start forward, only legal before
// the runner's first firing observes this session (spec §4.4 Mutation).
// Returns false (a no-op) if the session has already been observed.
func (s *Session) SetStartingFrame(f eventloop.FrameNumber) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.firstObserved {
		return false
	}
	s.startingFrame = f
	for i := range s.tracks {
		s.tracks[i].NextDispatchFrame = f
	}
	return true
}

func (s *Session) StartingFrame() eventloop.FrameNumber {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startingFrame
}

// SetAudioBuffer and SetAudioTransport are single-writer setters expected to
// be called only by the scheduler during construction.
func (s *Session) SetAudioBuffer(buf *stream.Buffer)          { s.audioBuffer = buf }
func (s *Session) SetAudioTransport(t transport.Transport)    { s.audioTransport = t }
func (s *Session) AudioBuffer() *stream.Buffer                { return s.audioBuffer }
func (s *Session) AudioTransport() transport.Transport        { return s.audioTransport }
func (s *Session) SetOnStart(fn func())                       { s.onStart = fn }
func (s *Session) SetOnFinish(fn func())                      { s.onFinish = fn }
func (s *Session) Span() observability.Span                   { return s.span }

// Cancel atomically marks the session cancelled. Safe from any thread,
// idempotent, sticky (spec §3 invariant 3).
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Cancelled reports the sticky cancellation flag.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// markFirstObserved flags that the runner has now fired at least once for
// this session, locking out any further SetStartingFrame calls, and
// reports whether this call was the one that made the transition (i.e.
// whether on_start should fire).
func (s *Session) markFirstObserved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firstObserved {
		return false
	}
	s.firstObserved = true
	return true
}

// fireOnStart invokes on_start exactly once, across the session's lifetime.
func (s *Session) fireOnStart() {
	s.onStartOnce.Do(func() {
		if s.onStart != nil {
			s.onStart()
		}
	})
}

// fireOnFinish invokes on_finish exactly once, whether triggered by natural
// completion or cancellation-observed teardown (spec §3 invariant 2).
func (s *Session) fireOnFinish() {
	s.onFinishOnce.Do(func() {
		s.finished.Store(true)
		if s.onFinish != nil {
			s.onFinish()
		}
	})
}

// allTracksFinished reports whether every track has emitted all its frames.
func (s *Session) allTracksFinished() bool {
	for i := range s.tracks {
		if !s.tracks[i].Finished() {
			return false
		}
	}
	return true
}
