package transport

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/opsnlops/creature-server/internal/audio/stream"
	"github.com/opsnlops/creature-server/internal/eventloop"
	"github.com/opsnlops/creature-server/internal/logging"
)

// hardTimeoutMargin is the safety-net window added to a known duration
// before the worker force-aborts a stuck device driver (spec §4.3.2).
const hardTimeoutMargin = 10 * time.Second

// maxDuration refuses to even attempt playback of anything reporting a
// duration beyond this.
const maxDuration = 3600 * time.Second

// pollInterval bounds how promptly the worker observes a stop request.
const pollInterval = 100 * time.Millisecond

// Player opens a local audio device and plays path to completion, blocking
// until done or ctx is cancelled. The real device driver is an external
// collaborator; this interface is what the transport depends on.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Local fires off a detached worker that plays a sound file to completion
// (or until stopped / timed out) and otherwise never touches the loop
// thread (spec §4.3.2).
type Local struct {
	player   Player
	path     string
	duration time.Duration

	playing  atomic.Bool
	finished atomic.Bool
	shouldStop atomic.Bool

	log logging.Logger
}

// NewLocal builds a transport that will play path (with its known
// duration, used only for the hard-timeout calculation) through player.
func NewLocal(player Player, path string, duration time.Duration, log logging.Logger) *Local {
	if log == nil {
		log = logging.NewNop()
	}
	return &Local{player: player, path: path, duration: duration, log: log}
}

func (t *Local) NeedsPerFrameDispatch() bool { return false }

func (t *Local) DispatchNextChunk(current eventloop.FrameNumber) eventloop.FrameNumber {
	return current
}

func (t *Local) Start(eventloop.FrameNumber, *stream.Buffer) error {
	if t.duration > maxDuration {
		t.finished.Store(true)
		return errDurationTooLong
	}

	t.playing.Store(true)

	timeout := t.duration + hardTimeoutMargin
	go t.run(timeout)

	return nil
}

func (t *Local) run(timeout time.Duration) {
	defer func() {
		t.playing.Store(false)
		t.finished.Store(true)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- t.player.Play(ctx, t.path) }()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if err != nil {
				t.log.Warn("local audio playback failed", logging.Err(err))
			}
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.shouldStop.Load() {
				cancel()
				<-done
				return
			}
		}
	}
}

func (t *Local) Stop() {
	t.shouldStop.Store(true)
}

func (t *Local) IsFinished() bool {
	return t.finished.Load()
}

func (t *Local) IsPlaying() bool {
	return t.playing.Load()
}
