// Package status models the "animation playing" status indicator the
// playback runner drives on start/teardown (spec §4.5, §4.6), grounded on
// the original's StatusLights — the real GPIO pin driver is an out-of-scope
// external collaborator (spec §1); this package only defines the interface
// the core calls through and an in-memory fake for use without hardware.
package status

import "sync/atomic"

// LightDriver is the collaborator the scheduler's lifecycle callbacks call
// into to flip a physical (or simulated) indicator.
type LightDriver interface {
	SetAnimationLight(on bool)
}

// MemoryDriver is a fake LightDriver for tests and for deployments with no
// GPIO hardware attached; it just remembers the last commanded state.
type MemoryDriver struct {
	animationOn atomic.Bool
}

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{}
}

func (d *MemoryDriver) SetAnimationLight(on bool) {
	d.animationOn.Store(on)
}

func (d *MemoryDriver) AnimationLightOn() bool {
	return d.animationOn.Load()
}
