// Package observability implements the SpanFactory contract consumed by the
// core (spec §6): scheduling, session lifecycle, per-runner-firing (sampled
// at a fixed rate), audio load, encoder reset, and every failure path must go
// through this.
package observability

import "sync/atomic"

// Span is the handle returned by CreateSpan.
type Span interface {
	SetAttribute(key string, value any)
	SetError(msg string)
	SetSuccess()
	RecordException(err error)
	End()
}

// SpanFactory creates spans, optionally parented to another span.
type SpanFactory interface {
	CreateSpan(name string, parent Span) Span
}

// noopSpan satisfies Span without doing any work; used when no parent
// factory is wired, and as the fallback the sampler returns when a span is
// skipped.
type noopSpan struct{}

func (noopSpan) SetAttribute(string, any)  {}
func (noopSpan) SetError(string)           {}
func (noopSpan) SetSuccess()               {}
func (noopSpan) RecordException(error)     {}
func (noopSpan) End()                      {}

// NoopFactory never produces real spans; this is the default.
type NoopFactory struct{}

func (NoopFactory) CreateSpan(string, Span) Span { return noopSpan{} }

// SamplingFactory wraps another SpanFactory and only forwards CreateSpan
// calls a fraction of the time. The playback runner fires once per animation
// tick (potentially thousands of times a second across sessions) so spec §6
// requires its span sampled at ≤0.05%; a counter-based sampler gives an exact
// rate rather than OTel's probabilistic sampler, which the spec does not ask
// for.
type SamplingFactory struct {
	inner SpanFactory
	every uint64 // forward 1 call out of every `every`
	n     atomic.Uint64
}

// NewSamplingFactory forwards to inner once every 1/rate calls. rate must be
// in (0, 1]; a rate of 0.0005 means "every 2000th call".
func NewSamplingFactory(inner SpanFactory, rate float64) *SamplingFactory {
	every := uint64(1)
	if rate > 0 && rate < 1 {
		every = uint64(1 / rate)
	}
	return &SamplingFactory{inner: inner, every: every}
}

func (f *SamplingFactory) CreateSpan(name string, parent Span) Span {
	n := f.n.Add(1)
	if n%f.every != 0 {
		return noopSpan{}
	}
	return f.inner.CreateSpan(name, parent)
}
