package rtp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsnlops/creature-server/internal/eventloop"
	"github.com/opsnlops/creature-server/internal/metrics"
)

func TestResetEvent_RotatesOnceAndSendsAllSilentRounds(t *testing.T) {
	srv, listeners := newLoopbackServer(t)
	loop := eventloop.New(1, nil, nil)
	m := metrics.New()

	startSSRC := srv.CurrentSSRC()
	ev := NewResetEvent(1, srv, 3, loop, nil, m)
	require.NoError(t, ev.Execute(context.Background()))

	assert.NotEqual(t, startSSRC, srv.CurrentSSRC())
	assert.EqualValues(t, 1, m.GetRtpEncoderResets())
	assert.Equal(t, 1, loop.QueueSize())

	for c := range listeners {
		buf := make([]byte, 1500)
		n, err := listeners[c].Read(buf)
		require.NoError(t, err)
		assert.Greater(t, n, 0)
	}
}

func TestResetEvent_SecondFiringDoesNotRotateAgain(t *testing.T) {
	srv, _ := newLoopbackServer(t)
	loop := eventloop.New(1, nil, nil)
	m := metrics.New()

	ev := NewResetEvent(1, srv, 1, loop, nil, m)
	require.NoError(t, ev.Execute(context.Background()))
	ssrcAfterFirst := srv.CurrentSSRC()
	require.Equal(t, 1, int(m.GetRtpEncoderResets()))

	require.NoError(t, ev.Execute(context.Background()))
	assert.Equal(t, ssrcAfterFirst, srv.CurrentSSRC())
	assert.Equal(t, 1, int(m.GetRtpEncoderResets()))
}
