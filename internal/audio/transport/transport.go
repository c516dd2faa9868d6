// Package transport implements Audio Transport (spec §4.3, C5): the two
// concrete variants a playback session can be bound to, both satisfying the
// same capability set so the runner never has to know which one it's
// driving.
package transport

import (
	"github.com/opsnlops/creature-server/internal/audio/stream"
	"github.com/opsnlops/creature-server/internal/eventloop"
)

// Transport is the polymorphic capability set the runner drives every
// firing (spec §4.3).
type Transport interface {
	Start(startingFrame eventloop.FrameNumber, buf *stream.Buffer) error
	Stop()
	NeedsPerFrameDispatch() bool
	DispatchNextChunk(current eventloop.FrameNumber) eventloop.FrameNumber
	IsFinished() bool
}
