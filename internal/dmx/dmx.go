// Package dmx implements the DMX sink collaborator (spec §4.2, C4): the
// thing a DmxEmitEvent calls to actually push channel data onto a universe.
// Grounded on the original's server/dmx.cpp + E131Server: a per-universe
// sACN (E1.31) sender built directly on a UDP socket. No library in the
// reference pack speaks sACN, and the wire format is a small fixed-layout
// binary packet (ANSI E1.31), so this is hand-rolled over net.UDPConn rather
// than reached for a dependency that doesn't exist in the ecosystem this
// repo draws from; see DESIGN.md.
package dmx

import "context"

// Sink accepts DMX channel data for one universe, starting at a byte
// offset. Implementations must be safe to call from the event loop
// goroutine only — the same single-writer contract the original's E1.31
// sender relies on.
type Sink interface {
	Send(ctx context.Context, universe uint32, offset uint16, data []byte) error
	Close() error
}
