package rtp

import (
	"context"

	"github.com/opsnlops/creature-server/internal/eventloop"
	"github.com/opsnlops/creature-server/internal/logging"
	"github.com/opsnlops/creature-server/internal/metrics"
)

// framesPerRound is the tick spacing between two silent-frame rounds: one
// 5ms Opus slice at the standard 1ms tick period.
const framesPerRound = 5

// ResetEvent is the schedulable EncoderResetAndPrime event body (spec §3,
// §4.7): on its first firing it rotates the SSRC generation and resets
// every encoder, then reschedules itself once per 5ms slice until
// remaining silent frames have all gone out.
type ResetEvent struct {
	frame     eventloop.FrameNumber
	server    *Server
	remaining int
	primed    bool
	loop      *eventloop.EventLoop
	log       logging.Logger
	metrics   *metrics.SystemCounters
}

// NewResetEvent schedules the reset for frame with silentFrameCount
// subsequent silent rounds (spec default 4).
func NewResetEvent(frame eventloop.FrameNumber, server *Server, silentFrameCount int, loop *eventloop.EventLoop, log logging.Logger, m *metrics.SystemCounters) *ResetEvent {
	if log == nil {
		log = logging.NewNop()
	}
	return &ResetEvent{frame: frame, server: server, remaining: silentFrameCount, loop: loop, log: log, metrics: m}
}

func (e *ResetEvent) TargetFrame() eventloop.FrameNumber { return e.frame }

func (e *ResetEvent) Execute(ctx context.Context) error {
	if !e.primed {
		oldSSRC := e.server.CurrentSSRC()
		newSSRC := e.server.RotateSSRC()
		if err := e.server.ResetEncoders(); err != nil {
			return err
		}
		e.primed = true
		if e.metrics != nil {
			e.metrics.IncrementRtpEncoderResets()
		}
		e.log.Info("rtp encoder reset",
			logging.Uint32("old_ssrc", oldSSRC),
			logging.Uint32("new_ssrc", newSSRC))
	}

	if e.remaining <= 0 {
		return nil
	}

	if err := e.server.SendSilentFrameRound(); err != nil {
		return err
	}
	e.remaining--

	if e.remaining > 0 && e.loop != nil {
		e.loop.ScheduleEvent(&ResetEvent{
			frame:     e.frame + framesPerRound,
			server:    e.server,
			remaining: e.remaining,
			primed:    true,
			loop:      e.loop,
			log:       e.log,
			metrics:   e.metrics,
		})
	}
	return nil
}
