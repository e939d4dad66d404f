package session

import (
	"sort"
	"sync"
)

// Store is a process-local registry of sessions keyed by id. It is safe for
// concurrent access. Sessions are stored by reference: Store only tracks
// them and never drives their loops.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Add tracks s, replacing any session with the same id.
func (st *Store) Add(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID()] = s
}

// Get returns the session with the given id.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Remove stops tracking the session with the given id.
func (st *Store) Remove(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	return ok
}

// IDs returns the tracked session ids in sorted order.
func (st *Store) IDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Active returns the tracked sessions that are still Active, sorted by id.
func (st *Store) Active() []*Session {
	var out []*Session
	for _, id := range st.IDs() {
		if s, ok := st.Get(id); ok && s.Status() == StatusActive {
			out = append(out, s)
		}
	}
	return out
}
