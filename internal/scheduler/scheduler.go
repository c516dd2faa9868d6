package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/opsnlops/creature-server/internal/animation"
	"github.com/opsnlops/creature-server/internal/audio/stream"
	"github.com/opsnlops/creature-server/internal/audio/transport"
	"github.com/opsnlops/creature-server/internal/config"
	"github.com/opsnlops/creature-server/internal/creature"
	"github.com/opsnlops/creature-server/internal/dmx"
	"github.com/opsnlops/creature-server/internal/eventloop"
	"github.com/opsnlops/creature-server/internal/logging"
	"github.com/opsnlops/creature-server/internal/metrics"
	"github.com/opsnlops/creature-server/internal/observability"
	"github.com/opsnlops/creature-server/internal/playback"
	"github.com/opsnlops/creature-server/internal/status"
	cerrors "github.com/opsnlops/creature-server/pkg/errors"
)

// RtpSender is the subset of rtp.Server an RtpAudioTransport dispatches
// through; kept as an interface here so this package doesn't depend on the
// concrete RTP server type.
type RtpSender = transport.RtpSender

// Scheduler is the Cooperative Scheduler (spec §4.6, C9): the single entry
// point that turns an animation request into a running playback session.
type Scheduler struct {
	loop     *eventloop.EventLoop
	registry *Registry

	cache  creature.Cache
	loader playback.CreatureLoader
	sink   dmx.Sink

	msPerTick         uint32
	audioMode         config.AudioMode
	soundFileLocation string
	audioCache        stream.Cache
	rtpSender         RtpSender
	localPlayer       transport.Player

	statusDriver status.LightDriver
	spans        observability.SpanFactory

	log     logging.Logger
	metrics *metrics.SystemCounters
}

// New builds a Scheduler. rtpSender and localPlayer may both be supplied;
// only the one matching cfg.AudioMode is ever used for a given session.
func New(
	loop *eventloop.EventLoop,
	registry *Registry,
	cache creature.Cache,
	loader playback.CreatureLoader,
	sink dmx.Sink,
	cfg *config.Configuration,
	audioCache stream.Cache,
	rtpSender RtpSender,
	localPlayer transport.Player,
	statusDriver status.LightDriver,
	spans observability.SpanFactory,
	log logging.Logger,
	m *metrics.SystemCounters,
) *Scheduler {
	if log == nil {
		log = logging.NewNop()
	}
	if spans == nil {
		spans = observability.NoopFactory{}
	}
	return &Scheduler{
		loop:              loop,
		registry:          registry,
		cache:             cache,
		loader:            loader,
		sink:              sink,
		msPerTick:         cfg.MsPerTick,
		audioMode:         cfg.AudioMode,
		soundFileLocation: cfg.SoundFileLocation,
		audioCache:        audioCache,
		rtpSender:         rtpSender,
		localPlayer:       localPlayer,
		statusDriver:      statusDriver,
		spans:             spans,
		log:               log,
		metrics:           m,
	}
}

// ScheduleAnimation implements schedule_animation (spec §4.6) end to end.
// Any failure building the session (audio load, unsupported transport)
// leaves the registry untouched and enqueues no events (spec §4.6 Error
// handling).
func (s *Scheduler) ScheduleAnimation(_ context.Context, startingFrame eventloop.FrameNumber, anim animation.Animation, universe uint32) (*playback.Session, error) {
	if err := anim.Validate(s.msPerTick); err != nil {
		return nil, err
	}

	span := s.spans.CreateSpan("schedule_animation", nil)
	defer span.End()
	span.SetAttribute("universe", int64(universe))
	span.SetAttribute("animation_id", anim.ID)
	span.SetAttribute("multitrack_audio", anim.MultitrackAudio)

	session := playback.New(anim, universe, startingFrame, span)

	if anim.HasAudio() {
		buf, tr, err := s.buildAudio(anim)
		if err != nil {
			span.RecordException(err)
			span.SetError(err.Error())
			return nil, err
		}
		session.SetAudioBuffer(buf)
		session.SetAudioTransport(tr)
	}

	s.installLifecycleCallbacks(session)

	// Preemption: installing into the registry cancels whatever session
	// already holds this universe (spec §4.6 step 4).
	s.registry.Install(universe, session)

	ticksPerFrame := eventloop.FrameNumber(anim.MillisecondsPerFrame / s.msPerTick)
	s.loop.ScheduleEvent(playback.NewRunnerEvent(startingFrame, session, s.loop, ticksPerFrame, s.cache, s.loader, s.sink, s.log, s.metrics))

	span.SetSuccess()
	if s.metrics != nil && anim.HasAudio() {
		s.metrics.IncrementSoundsPlayed()
	}
	return session, nil
}

// buildAudio loads the AudioStreamBuffer and constructs (but does not
// start) the configured transport variant (spec §4.6 step 2); starting
// happens from on_start (spec §4.6 step 3).
func (s *Scheduler) buildAudio(anim animation.Animation) (*stream.Buffer, transport.Transport, error) {
	path := filepath.Join(s.soundFileLocation, anim.SoundFile)
	buf, err := stream.Load(path, stream.Options{FEC: true, Cache: s.audioCache})
	if err != nil {
		return nil, nil, fmt.Errorf("loading audio for animation %s: %w", anim.ID, err)
	}

	switch s.audioMode {
	case config.AudioModeRtp:
		if s.rtpSender == nil {
			return nil, nil, cerrors.New(cerrors.InternalError, "audio mode is rtp but no rtp sender is configured")
		}
		return buf, transport.NewRtp(s.rtpSender, s.log, s.metrics), nil

	case config.AudioModeLocal:
		if s.localPlayer == nil {
			return nil, nil, cerrors.New(cerrors.InternalError, "audio mode is local but no player is configured")
		}
		duration := time.Duration(buf.FrameCount) * stream.SliceMs * time.Millisecond
		return buf, transport.NewLocal(s.localPlayer, path, duration, s.log), nil

	default:
		return nil, nil, cerrors.New(cerrors.InternalError, fmt.Sprintf("unknown audio mode %q", s.audioMode))
	}
}

// installLifecycleCallbacks wires on_start/on_finish to the status light
// and (for on_start) the audio transport (spec §4.6 step 3).
func (s *Scheduler) installLifecycleCallbacks(session *playback.Session) {
	session.SetOnStart(func() {
		s.loop.ScheduleEvent(eventloop.NewStatusLightEvent(s.loop.NextFrameNumber(), true, s.statusDriver))
		if tr := session.AudioTransport(); tr != nil {
			if err := tr.Start(session.StartingFrame(), session.AudioBuffer()); err != nil {
				s.log.Warn("audio transport failed to start", logging.Err(err))
			}
		}
	})

	session.SetOnFinish(func() {
		s.loop.ScheduleEvent(eventloop.NewStatusLightEvent(s.loop.NextFrameNumber(), false, s.statusDriver))
	})
}
