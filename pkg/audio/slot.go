package audio

import "sync"

// slot owns at most one live handle. Acquire fails while occupied, which
// is what makes double-start a structural no-op rather than a convention.
type slot[H any] struct {
	mu   sync.Mutex
	h    H
	live bool
}

// acquire installs h if the slot is free. Returns false while occupied.
func (s *slot[H]) acquire(h H) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live {
		return false
	}
	s.h = h
	s.live = true
	return true
}

// release empties the slot and returns the handle that was held.
func (s *slot[H]) release() (H, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero H
	if !s.live {
		return zero, false
	}
	h := s.h
	s.h = zero
	s.live = false
	return h, true
}

// get returns the held handle without releasing it.
func (s *slot[H]) get() (H, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		var zero H
		return zero, false
	}
	return s.h, true
}

// occupied reports whether a handle is live.
func (s *slot[H]) occupied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}
