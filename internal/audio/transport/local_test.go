package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	playFor time.Duration
	err     error
}

func (p *fakePlayer) Play(ctx context.Context, _ string) error {
	select {
	case <-time.After(p.playFor):
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestLocalTransport_FinishesAfterPlaybackCompletes(t *testing.T) {
	tr := NewLocal(&fakePlayer{playFor: 20 * time.Millisecond}, "sound.pcm", 20*time.Millisecond, nil)

	require.NoError(t, tr.Start(0, nil))
	assert.True(t, tr.IsPlaying())
	assert.False(t, tr.IsFinished())

	require.Eventually(t, tr.IsFinished, time.Second, time.Millisecond)
	assert.False(t, tr.IsPlaying())
}

func TestLocalTransport_StopEndsPlaybackEarly(t *testing.T) {
	tr := NewLocal(&fakePlayer{playFor: time.Hour}, "sound.pcm", time.Hour, nil)
	require.NoError(t, tr.Start(0, nil))

	time.Sleep(5 * time.Millisecond)
	tr.Stop()

	require.Eventually(t, tr.IsFinished, 2*time.Second, 10*time.Millisecond)
}

func TestLocalTransport_RefusesDurationOverHardLimit(t *testing.T) {
	tr := NewLocal(&fakePlayer{}, "sound.pcm", 2*time.Hour, nil)
	err := tr.Start(0, nil)
	require.Error(t, err)
	assert.True(t, tr.IsFinished())
}

func TestLocalTransport_NeedsPerFrameDispatchIsFalse(t *testing.T) {
	tr := NewLocal(&fakePlayer{}, "sound.pcm", 0, nil)
	assert.False(t, tr.NeedsPerFrameDispatch())
}

func TestLocalTransport_PlayerErrorStillMarksFinished(t *testing.T) {
	tr := NewLocal(&fakePlayer{playFor: time.Millisecond, err: errors.New("device gone")}, "sound.pcm", time.Millisecond, nil)
	require.NoError(t, tr.Start(0, nil))
	require.Eventually(t, tr.IsFinished, time.Second, time.Millisecond)
}
