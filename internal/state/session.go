// Package state holds the per-run keyed store shared by pipeline stages.
package state

import (
	"fmt"
	"maps"
	"sync"
)

// Reader is the read-only view handed to hooks and tools.
type Reader interface {
	Get(key string) (any, bool)
	Has(key string) bool
	String(key string) string
	Keys() []string
}

// Session is a mutable string-keyed store scoped to a single run. Keys are
// written once per run by convention; Set does not enforce it. Insertion
// order of first writes is kept.
type Session struct {
	mu     sync.RWMutex
	values map[string]any
	order  []string
}

// New returns an empty session.
func New() *Session {
	return &Session{values: make(map[string]any)}
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key.
func (s *Session) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		s.order = append(s.order, key)
	}
	s.values[key] = value
}

// Has reports whether key has a value.
func (s *Session) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// String returns the value under key formatted as a string, or "" if absent.
func (s *Session) String(key string) string {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

// Keys returns keys in first-write order.
func (s *Session) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Snapshot returns a shallow copy of all values.
func (s *Session) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Lookup fetches key and asserts it to T.
func Lookup[T any](r Reader, key string) (T, bool) {
	var zero T
	v, ok := r.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
