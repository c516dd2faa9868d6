package stream

// NewTestBuffer builds a Buffer with frameCount non-nil, non-empty payloads
// on every channel, without touching the Opus encoder — used by other
// packages' tests (audio transports, runner, scheduler) that only care
// about frame indexing, not codec correctness.
func NewTestBuffer(frameCount int) *Buffer {
	buf := &Buffer{FrameCount: frameCount}
	for c := range buf.slices {
		buf.slices[c] = make([][]byte, frameCount)
		for f := range buf.slices[c] {
			buf.slices[c][f] = []byte{0x01}
		}
	}
	return buf
}
