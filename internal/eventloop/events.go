package eventloop

import (
	"context"

	"github.com/opsnlops/creature-server/internal/dmx"
	"github.com/opsnlops/creature-server/internal/metrics"
	"github.com/opsnlops/creature-server/internal/status"
)

// DmxEmitEvent pushes one universe's worth of channel data to the DMX sink
// (spec §3 event body DmxEmit).
type DmxEmitEvent struct {
	frame    FrameNumber
	universe uint32
	offset   uint16
	data     []byte
	sink     dmx.Sink
	metrics  *metrics.SystemCounters
}

func NewDmxEmitEvent(frame FrameNumber, universe uint32, offset uint16, data []byte, sink dmx.Sink, m *metrics.SystemCounters) *DmxEmitEvent {
	return &DmxEmitEvent{frame: frame, universe: universe, offset: offset, data: data, sink: sink, metrics: m}
}

func (e *DmxEmitEvent) TargetFrame() FrameNumber { return e.frame }

func (e *DmxEmitEvent) Execute(ctx context.Context) error {
	if err := e.sink.Send(ctx, e.universe, e.offset, e.data); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.IncrementDMXEventsProcessed()
	}
	return nil
}

// StatusLightEvent flips a status indicator, fired from a session's
// onStart/onFinish lifecycle callbacks (spec §4.6).
type StatusLightEvent struct {
	frame  FrameNumber
	on     bool
	driver status.LightDriver
}

func NewStatusLightEvent(frame FrameNumber, on bool, driver status.LightDriver) *StatusLightEvent {
	return &StatusLightEvent{frame: frame, on: on, driver: driver}
}

func (e *StatusLightEvent) TargetFrame() FrameNumber { return e.frame }

func (e *StatusLightEvent) Execute(context.Context) error {
	e.driver.SetAnimationLight(e.on)
	return nil
}

// CacheInvalidateEvent drops one creature from the cache, used when an
// external roster edit is known to have happened (spec §3 event body
// CacheInvalidate).
type CacheInvalidateEvent struct {
	frame      FrameNumber
	creatureID string
	invalidate func(id string)
}

func NewCacheInvalidateEvent(frame FrameNumber, creatureID string, invalidate func(id string)) *CacheInvalidateEvent {
	return &CacheInvalidateEvent{frame: frame, creatureID: creatureID, invalidate: invalidate}
}

func (e *CacheInvalidateEvent) TargetFrame() FrameNumber { return e.frame }

func (e *CacheInvalidateEvent) Execute(context.Context) error {
	e.invalidate(e.creatureID)
	return nil
}

// CounterSnapshotEvent periodically hands the current SystemCounters values
// to an external reporter (spec §3 event body CounterSnapshot), kept off the
// hot path by rescheduling itself rather than being driven by an external
// timer thread.
type CounterSnapshotEvent struct {
	frame    FrameNumber
	period   FrameNumber
	counters *metrics.SystemCounters
	report   func(*metrics.SystemCounters)
	loop     *EventLoop
}

func NewCounterSnapshotEvent(frame, period FrameNumber, counters *metrics.SystemCounters, report func(*metrics.SystemCounters), loop *EventLoop) *CounterSnapshotEvent {
	return &CounterSnapshotEvent{frame: frame, period: period, counters: counters, report: report, loop: loop}
}

func (e *CounterSnapshotEvent) TargetFrame() FrameNumber { return e.frame }

func (e *CounterSnapshotEvent) Execute(context.Context) error {
	e.report(e.counters)
	if e.loop != nil && e.period > 0 {
		e.loop.ScheduleEvent(NewCounterSnapshotEvent(e.frame+e.period, e.period, e.counters, e.report, e.loop))
	}
	return nil
}

// TickEvent is a health heartbeat with no payload beyond its own firing,
// useful for liveness probes wired to the loop's cadence rather than a wall
// clock (spec §3 event body Tick).
type TickEvent struct {
	frame   FrameNumber
	onFire  func()
}

func NewTickEvent(frame FrameNumber, onFire func()) *TickEvent {
	return &TickEvent{frame: frame, onFire: onFire}
}

func (e *TickEvent) TargetFrame() FrameNumber { return e.frame }

func (e *TickEvent) Execute(context.Context) error {
	if e.onFire != nil {
		e.onFire()
	}
	return nil
}

// DeferEvent is the generic lambda-carrier event body (spec §3 event body
// Defer) for one-off work that doesn't warrant its own type.
type DeferEvent struct {
	frame FrameNumber
	fn    func(ctx context.Context) error
}

func NewDeferEvent(frame FrameNumber, fn func(ctx context.Context) error) *DeferEvent {
	return &DeferEvent{frame: frame, fn: fn}
}

func (e *DeferEvent) TargetFrame() FrameNumber { return e.frame }

func (e *DeferEvent) Execute(ctx context.Context) error { return e.fn(ctx) }
