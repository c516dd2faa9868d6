// Package metrics provides the atomic process counters the playback core
// increments as it runs, grounded on the original implementation's
// SystemCounters (server/metrics/counters.h/.cpp): a flat set of
// monotonic uint64 counters read by any external exporter, with no locking
// beyond atomics.
package metrics

import "sync/atomic"

// SystemCounters is safe for concurrent use; every Increment* may be called
// from the loop thread, audio workers, or the RTP control path.
type SystemCounters struct {
	totalFrames            atomic.Uint64
	eventsProcessed        atomic.Uint64
	framesStreamed         atomic.Uint64
	dmxEventsProcessed     atomic.Uint64
	animationsPlayed       atomic.Uint64
	soundsPlayed           atomic.Uint64
	rtpEncoderResets       atomic.Uint64
	rtpSendFailures        atomic.Uint64
	sessionsCancelled      atomic.Uint64
	sessionsFatalErrors    atomic.Uint64
	eventExecutionFailures atomic.Uint64
}

func New() *SystemCounters { return &SystemCounters{} }

func (c *SystemCounters) IncrementTotalFrames()            { c.totalFrames.Add(1) }
func (c *SystemCounters) IncrementEventsProcessed()        { c.eventsProcessed.Add(1) }
func (c *SystemCounters) IncrementFramesStreamed()         { c.framesStreamed.Add(1) }
func (c *SystemCounters) IncrementDMXEventsProcessed()     { c.dmxEventsProcessed.Add(1) }
func (c *SystemCounters) IncrementAnimationsPlayed()       { c.animationsPlayed.Add(1) }
func (c *SystemCounters) IncrementSoundsPlayed()           { c.soundsPlayed.Add(1) }
func (c *SystemCounters) IncrementRtpEncoderResets()       { c.rtpEncoderResets.Add(1) }
func (c *SystemCounters) IncrementRtpSendFailures()        { c.rtpSendFailures.Add(1) }
func (c *SystemCounters) IncrementSessionsCancelled()      { c.sessionsCancelled.Add(1) }
func (c *SystemCounters) IncrementSessionsFatalErrors()    { c.sessionsFatalErrors.Add(1) }
func (c *SystemCounters) IncrementEventExecutionFailures() { c.eventExecutionFailures.Add(1) }

func (c *SystemCounters) GetTotalFrames() uint64            { return c.totalFrames.Load() }
func (c *SystemCounters) GetEventsProcessed() uint64        { return c.eventsProcessed.Load() }
func (c *SystemCounters) GetFramesStreamed() uint64         { return c.framesStreamed.Load() }
func (c *SystemCounters) GetDMXEventsProcessed() uint64     { return c.dmxEventsProcessed.Load() }
func (c *SystemCounters) GetAnimationsPlayed() uint64       { return c.animationsPlayed.Load() }
func (c *SystemCounters) GetSoundsPlayed() uint64           { return c.soundsPlayed.Load() }
func (c *SystemCounters) GetRtpEncoderResets() uint64       { return c.rtpEncoderResets.Load() }
func (c *SystemCounters) GetRtpSendFailures() uint64        { return c.rtpSendFailures.Load() }
func (c *SystemCounters) GetSessionsCancelled() uint64      { return c.sessionsCancelled.Load() }
func (c *SystemCounters) GetSessionsFatalErrors() uint64    { return c.sessionsFatalErrors.Load() }
func (c *SystemCounters) GetEventExecutionFailures() uint64 { return c.eventExecutionFailures.Load() }
