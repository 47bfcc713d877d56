package orchestrator

import (
	"sync"
	"time"

	"ravelon/internal/adgate"
	"ravelon/internal/clock"
)

// session is the per-client slot: one gate and one in-flight flag.
type session struct {
	mu       sync.Mutex
	inflight bool
	lastSeen time.Time
	gate     *adgate.Gate[Outcome]
}

func (s *session) acquire(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
	if s.inflight {
		return false
	}
	s.inflight = true
	return true
}

func (s *session) release() {
	s.mu.Lock()
	s.inflight = false
	s.mu.Unlock()
}

func (s *session) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

// idleSince reports whether the session was last touched before cutoff. A
// session whose action is executing right now is never idle.
func (s *session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight {
		if state, _ := s.gate.Current(); state == adgate.StateIdle {
			return false
		}
	}
	return s.lastSeen.Before(cutoff)
}

// registry maps principal keys to sessions. Sessions untouched for ttl are
// dropped together with any action still waiting behind their gate.
type registry struct {
	mu        sync.Mutex
	clock     clock.Clock
	ttl       time.Duration
	lastSweep time.Time
	sessions  map[string]*session
}

func newRegistry(c clock.Clock, ttl time.Duration) *registry {
	return &registry{clock: c, ttl: ttl, sessions: make(map[string]*session)}
}

func (r *registry) get(key string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	r.sweepLocked(now)
	s, ok := r.sessions[key]
	if !ok {
		s = &session{lastSeen: now, gate: adgate.New[Outcome](r.clock)}
		r.sessions[key] = s
	}
	return s
}

func (r *registry) lookup(key string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[key]
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *registry) sweepLocked(now time.Time) {
	if r.ttl <= 0 || now.Sub(r.lastSweep) < time.Minute {
		return
	}
	r.lastSweep = now
	cutoff := now.Add(-r.ttl)
	for key, s := range r.sessions {
		if s.idleSince(cutoff) {
			delete(r.sessions, key)
		}
	}
}
