// Package animation holds the Animation/Track data model consumed by the
// core as an immutable external input (spec §3, §6). The core performs no
// schema validation beyond non-empty tracks and ms_per_frame being a
// multiple of the tick period — everything else is the owning store's
// concern.
package animation

// Track is one creature's ordered sequence of opaque DMX frame payloads.
// The core never interprets per-channel semantics of a frame — each one is
// just bytes handed to the DMX sink.
type Track struct {
	CreatureID string
	Frames     [][]byte
}

// Animation is immutable input loaded from an external store.
type Animation struct {
	ID                   string
	Title                string
	MillisecondsPerFrame uint32
	Tracks               []Track
	SoundFile            string // empty means no audio
	MultitrackAudio      bool   // forwarded to observability only; see spec §9 open question 1
}

// HasAudio reports whether this animation references a sound file.
func (a Animation) HasAudio() bool {
	return a.SoundFile != ""
}

// Validate checks the invariants the core itself is responsible for
// enforcing before a session is constructed (spec §6): every track must be
// non-empty, and ms_per_frame must be a positive multiple of tickPeriodMs.
func (a Animation) Validate(tickPeriodMs uint32) error {
	if a.MillisecondsPerFrame == 0 || a.MillisecondsPerFrame%tickPeriodMs != 0 {
		return errInvalidFramePeriod
	}
	for _, t := range a.Tracks {
		if len(t.Frames) == 0 {
			return errEmptyTrack
		}
	}
	return nil
}
