package session

import (
	"maps"
	"slices"
	"sync"
)

// State is the session-shared key/value store. It is safe for concurrent
// access. Values are copied on the way in and out: maps and slices of
// JSON-like values (map[string]any, []any, string, float64, int and bool
// containers) are copied recursively. Other reference values, such as
// pointers or structs holding maps, are shared and must be treated as
// immutable.
type State struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewState constructs an empty state.
func NewState() *State {
	return &State{values: make(map[string]any)}
}

// Set stores value under key.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = deepCopy(value)
}

// Get returns the value stored under key.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return deepCopy(v), ok
}

// Delete removes key.
func (s *State) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Merge copies every entry of delta into the state.
func (s *State) Merge(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range delta {
		s.values[k] = deepCopy(v)
	}
}

// Snapshot returns a copy of the state that evaluators can read while the
// session keeps writing.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepCopyMap(s.values)
}

// Len returns the number of keys.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	case map[string]string:
		return maps.Clone(t)
	case map[string]float64:
		return maps.Clone(t)
	case map[string]int:
		return maps.Clone(t)
	case map[string]bool:
		return maps.Clone(t)
	case []string:
		return slices.Clone(t)
	case []float64:
		return slices.Clone(t)
	case []int:
		return slices.Clone(t)
	case []bool:
		return slices.Clone(t)
	default:
		return v
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}
