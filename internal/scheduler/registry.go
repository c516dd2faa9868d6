// Package scheduler implements the Cooperative Scheduler and Session
// Registry (spec §4.6, C9/C10): the entry point that turns an animation
// into a running playback session, and the universe → session map that
// makes a new playback preempt whatever was running before it.
package scheduler

import (
	"sync"

	"github.com/opsnlops/creature-server/internal/playback"
)

// Registry maps universe to its active session. Single-writer semantics
// suffice: only the scheduler ever writes (spec §5 Shared resources).
type Registry struct {
	mu       sync.Mutex
	sessions map[uint32]*playback.Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uint32]*playback.Session)}
}

// Active returns the session currently registered for universe, if any.
func (r *Registry) Active(universe uint32) (*playback.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[universe]
	return s, ok
}

// Install preempts whatever session currently holds universe — cancelling
// it — and installs next in its place (spec §4.6 step 4-5).
func (r *Registry) Install(universe uint32, next *playback.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := r.sessions[universe]; ok {
		prior.Cancel()
	}
	r.sessions[universe] = next
}
