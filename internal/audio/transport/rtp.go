package transport

import (
	"sync"
	"sync/atomic"

	"github.com/opsnlops/creature-server/internal/audio/stream"
	"github.com/opsnlops/creature-server/internal/eventloop"
	"github.com/opsnlops/creature-server/internal/logging"
	"github.com/opsnlops/creature-server/internal/metrics"
)

// prefillDispatches is the number of initial dispatches paced 1 tick apart
// instead of the steady 5ms cadence, giving downstream jitter buffers a
// head start (spec §4.3.1).
const prefillDispatches = 3

// RtpSender is the subset of rtp.Server the transport needs: pushing one
// pre-encoded frame to one channel's stream.
type RtpSender interface {
	SendFrame(channel int, payload []byte) error
}

// Rtp dispatches one pre-encoded Opus frame per channel per due tick to an
// RtpSender, prefilling the first few dispatches at 1ms before settling
// into the standard 5ms cadence.
type Rtp struct {
	sender RtpSender

	mu                sync.Mutex
	buf               *stream.Buffer
	cursor            int
	totalFrames       int
	nextDispatchFrame eventloop.FrameNumber
	dispatchCount     int
	started           bool
	stopped           atomic.Bool

	log     logging.Logger
	metrics *metrics.SystemCounters
}

func NewRtp(sender RtpSender, log logging.Logger, m *metrics.SystemCounters) *Rtp {
	if log == nil {
		log = logging.NewNop()
	}
	return &Rtp{sender: sender, log: log, metrics: m}
}

func (t *Rtp) NeedsPerFrameDispatch() bool { return true }

func (t *Rtp) Start(startingFrame eventloop.FrameNumber, buf *stream.Buffer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = buf
	t.totalFrames = buf.FrameCount
	t.cursor = 0
	t.nextDispatchFrame = startingFrame
	t.dispatchCount = 0
	t.started = true
	t.stopped.Store(false)
	return nil
}

func (t *Rtp) Stop() {
	t.stopped.Store(true)
}

func (t *Rtp) IsFinished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped.Load() || (t.started && t.cursor >= t.totalFrames)
}

// DispatchNextChunk pushes frame `cursor` for every channel to the RTP
// sender if current has reached nextDispatchFrame, and returns the frame
// number the next call should compare against.
func (t *Rtp) DispatchNextChunk(current eventloop.FrameNumber) eventloop.FrameNumber {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started || current < t.nextDispatchFrame {
		return t.nextDispatchFrame
	}
	if t.stopped.Load() || t.cursor >= t.totalFrames {
		return current
	}

	for c := 0; c < stream.ChannelCount; c++ {
		payload := t.buf.Frame(c, t.cursor)
		if payload == nil {
			continue
		}
		if err := t.sender.SendFrame(c, payload); err != nil {
			if t.metrics != nil {
				t.metrics.IncrementRtpSendFailures()
			}
			t.log.Warn("rtp send failed", logging.Int("channel", c), logging.Err(err))
		}
	}
	if t.metrics != nil {
		t.metrics.IncrementFramesStreamed()
	}

	t.cursor++
	t.dispatchCount++

	step := eventloop.FrameNumber(stream.SliceMs)
	if t.dispatchCount < prefillDispatches {
		step = 1
	}
	t.nextDispatchFrame += step

	return t.nextDispatchFrame
}
