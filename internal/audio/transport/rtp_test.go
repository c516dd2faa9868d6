package transport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsnlops/creature-server/internal/audio/stream"
)

type recordingSender struct {
	mu   sync.Mutex
	sent map[int]int // channel -> count
	fail bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: make(map[int]int)}
}

func (s *recordingSender) SendFrame(channel int, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return assert.AnError
	}
	s.sent[channel]++
	return nil
}

func (s *recordingSender) countFor(channel int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[channel]
}

func TestRtpTransport_PrefillThenSteadyCadence(t *testing.T) {
	sender := newRecordingSender()
	tr := NewRtp(sender, nil, nil)

	buf := fakeBuffer(10)
	require.NoError(t, tr.Start(100, buf))

	next := tr.DispatchNextChunk(100)
	assert.EqualValues(t, 101, next) // prefill dispatch 1: +1 tick

	next = tr.DispatchNextChunk(101)
	assert.EqualValues(t, 102, next) // prefill dispatch 2: +1 tick

	next = tr.DispatchNextChunk(102)
	assert.EqualValues(t, 107, next) // prefill dispatch 3 already transitions to steady cadence: +5 ticks

	next = tr.DispatchNextChunk(107)
	assert.EqualValues(t, 112, next) // steady state: +5 ticks

	for c := 0; c < stream.ChannelCount; c++ {
		assert.Equal(t, 4, sender.countFor(c))
	}
}

func TestRtpTransport_NoopBeforeNextDispatchFrame(t *testing.T) {
	sender := newRecordingSender()
	tr := NewRtp(sender, nil, nil)
	require.NoError(t, tr.Start(100, fakeBuffer(10)))

	next := tr.DispatchNextChunk(50)
	assert.EqualValues(t, 100, next)
	assert.Equal(t, 0, sender.countFor(0))
}

func TestRtpTransport_FinishesWhenCursorExhausted(t *testing.T) {
	sender := newRecordingSender()
	tr := NewRtp(sender, nil, nil)
	require.NoError(t, tr.Start(0, fakeBuffer(1)))

	assert.False(t, tr.IsFinished())
	tr.DispatchNextChunk(0)
	assert.True(t, tr.IsFinished())
}

func TestRtpTransport_StopIsIdempotentAndMarksFinished(t *testing.T) {
	sender := newRecordingSender()
	tr := NewRtp(sender, nil, nil)
	require.NoError(t, tr.Start(0, fakeBuffer(10)))

	tr.Stop()
	tr.Stop()
	assert.True(t, tr.IsFinished())

	next := tr.DispatchNextChunk(0)
	assert.EqualValues(t, 0, next)
	assert.Equal(t, 0, sender.countFor(0))
}

// fakeBuffer builds a stream.Buffer with n frames of non-nil payload on
// every channel without going through the real Opus encoder.
func fakeBuffer(n int) *stream.Buffer {
	return stream.NewTestBuffer(n)
}
