// Package creature holds the Creature data model and the read-mostly cache
// the playback runner consults on every DMX-emitting tick (spec §3, §4.5).
// The cache is grounded on the RTP port allocator pattern in the teacher's
// sip infra package: an always-present in-memory layer, with an optional
// Redis-backed distributed layer consulted on a local miss. A Redis error is
// reported as a miss; the Redis call itself is made synchronously.
package creature

// Creature is immutable input describing where one physical creature's DMX
// channels live on the universe.
type Creature struct {
	ID            string
	Name          string
	ChannelOffset uint16
	ChannelCount  uint16
	AudioChannel  uint8 // index into the 17-channel audio stream buffer, spec §4.2
}
