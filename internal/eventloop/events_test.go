package eventloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsnlops/creature-server/internal/dmx"
	"github.com/opsnlops/creature-server/internal/metrics"
	"github.com/opsnlops/creature-server/internal/status"
)

func TestDmxEmitEvent_SendsToSinkAndCountsMetric(t *testing.T) {
	sink := dmx.NewMemorySink()
	m := metrics.New()

	e := NewDmxEmitEvent(1, 3, 10, []byte{1, 2, 3}, sink, m)
	require.NoError(t, e.Execute(context.Background()))

	frames := sink.Frames()
	require.Len(t, frames, 1)
	assert.EqualValues(t, 3, frames[0].Universe)
	assert.EqualValues(t, 10, frames[0].Offset)
	assert.Equal(t, []byte{1, 2, 3}, frames[0].Data)
	assert.EqualValues(t, 1, m.GetDMXEventsProcessed())
}

func TestStatusLightEvent_DrivesLight(t *testing.T) {
	driver := status.NewMemoryDriver()

	require.NoError(t, NewStatusLightEvent(1, true, driver).Execute(context.Background()))
	assert.True(t, driver.AnimationLightOn())

	require.NoError(t, NewStatusLightEvent(2, false, driver).Execute(context.Background()))
	assert.False(t, driver.AnimationLightOn())
}

func TestCacheInvalidateEvent_CallsInvalidate(t *testing.T) {
	var invalidated string
	e := NewCacheInvalidateEvent(1, "creature-1", func(id string) { invalidated = id })
	require.NoError(t, e.Execute(context.Background()))
	assert.Equal(t, "creature-1", invalidated)
}

func TestDeferEvent_RunsFn(t *testing.T) {
	var ran bool
	e := NewDeferEvent(1, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, e.Execute(context.Background()))
	assert.True(t, ran)
}

func TestTickEvent_CallsOnFire(t *testing.T) {
	var fired bool
	e := NewTickEvent(1, func() { fired = true })
	require.NoError(t, e.Execute(context.Background()))
	assert.True(t, fired)
}

func TestCounterSnapshotEvent_ReschedulesItself(t *testing.T) {
	loop := newTestLoop()
	m := metrics.New()

	var reports int
	e := NewCounterSnapshotEvent(1, 5, m, func(*metrics.SystemCounters) { reports++ }, loop)
	require.NoError(t, e.Execute(context.Background()))

	assert.Equal(t, 1, reports)
	assert.Equal(t, 1, loop.QueueSize())
}
