package store

import "time"

// CleanupOld removes every session in a terminal status whose UpdatedAt is
// older than maxAge, and returns the ids removed. Called by pkg/cleanup on a
// timer.
func (s *Store) CleanupOld(maxAge time.Duration) []string {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, e := range s.sessions {
		e.mu.Lock()
		stale := e.session.Status.Terminal() && e.session.UpdatedAt.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(s.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Exists reports whether sessionID is currently tracked, without allocating
// a snapshot. Used by WorkspaceManager to decide whether a scheduled
// deletion is still relevant.
func (s *Store) Exists(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok
}
