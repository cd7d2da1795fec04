package router

import "sync"

// LiveState tracks how many transport connections a router holds so the
// stream-live transition fires only on the first connect and the last
// disconnect. Intermediate connections of a multi-stream platform stay
// silent.
type LiveState struct {
	mu     sync.Mutex
	active int
}

// Up registers a ready connection and reports whether this was the
// first, i.e. whether the stream-live=true transition should be emitted.
func (s *LiveState) Up() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active++
	return s.active == 1
}

// Down registers a lost connection and reports whether it was the last.
func (s *LiveState) Down() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == 0 {
		return false
	}
	s.active--
	return s.active == 0
}

// Live reports whether any connection is currently active.
func (s *LiveState) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active > 0
}

// Reset drops all state and reports whether the stream was live, so
// cleanup can emit the final stream-status exactly once.
func (s *LiveState) Reset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasLive := s.active > 0
	s.active = 0
	return wasLive
}
